package harness

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Run executes the CLI in the provided working directory. HOME points at
// workDir so that "~/" workspace paths stay inside the test's temp dirs.
func Run(t *testing.T, binPath, workDir string, args []string) (string, string, int) {
	t.Helper()
	return run(t, binPath, workDir, args)
}

func run(t *testing.T, binPath, workDir string, args []string) (string, string, int) {
	t.Helper()

	cmd := exec.Command(binPath, args...)
	cmd.Dir = workDir
	cmd.Env = mergeEnv(map[string]string{
		"HOME":                 workDir,
		"ORGMATURITY_AUDIT_DB": "",
	})

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		} else {
			t.Fatalf("run %s: %v", binPath, err)
		}
	}

	return stdout.String(), stderr.String(), exitCode
}

func mergeEnv(overrides map[string]string) []string {
	env := make(map[string]string, len(overrides))
	for _, entry := range os.Environ() {
		parts := strings.SplitN(entry, "=", 2)
		key := parts[0]
		val := ""
		if len(parts) > 1 {
			val = parts[1]
		}
		env[key] = val
	}

	for k, v := range overrides {
		env[k] = v
	}

	merged := make([]string, 0, len(env))
	for k, v := range env {
		merged = append(merged, k+"="+v)
	}
	sort.Strings(merged)
	return merged
}

// MustRun executes the CLI and fails the test on a non-zero exit code.
func MustRun(t *testing.T, binPath, workDir string, args ...string) string {
	t.Helper()
	stdout, stderr, code := run(t, binPath, workDir, args)
	if code != 0 {
		t.Fatalf("%s %s exit code %d\nstdout:\n%s\nstderr:\n%s", filepath.Base(binPath), strings.Join(args, " "), code, stdout, stderr)
	}
	return stdout
}
