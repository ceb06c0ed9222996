package harness

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
)

var buildOnce sync.Once
var buildPath string
var buildErr error

var repoRootOnce sync.Once
var repoRoot string
var repoRootErr error

// RepoRoot returns the repository root for the current module.
func RepoRoot(t *testing.T) string {
	t.Helper()
	root, err := repoRootPath()
	if err != nil {
		t.Fatalf("resolve repo root: %v", err)
	}
	return root
}

func repoRootPath() (string, error) {
	repoRootOnce.Do(func() {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			repoRootErr = fmt.Errorf("runtime.Caller failed")
			return
		}

		root := filepath.Dir(filepath.Dir(filepath.Dir(file)))
		if _, err := os.Stat(filepath.Join(root, "go.mod")); err != nil {
			repoRootErr = fmt.Errorf("verify repo root: %w", err)
			return
		}
		repoRoot = root
	})
	return repoRoot, repoRootErr
}

// prebuiltEnv names an already built CLI to test instead of compiling one.
const prebuiltEnv = "ORGMATURITY_TEST_BIN"

// BuildBinary compiles the orgmaturity CLI once per test run and returns the
// path. The build has cgo disabled: the audit store uses a pure Go SQLite
// driver and the binary must not depend on a C toolchain.
func BuildBinary(t *testing.T) string {
	t.Helper()
	root := RepoRoot(t)

	buildOnce.Do(func() {
		if prebuilt := os.Getenv(prebuiltEnv); prebuilt != "" {
			if _, err := os.Stat(prebuilt); err != nil {
				buildErr = fmt.Errorf("%s: %w", prebuiltEnv, err)
				return
			}
			buildPath = prebuilt
			return
		}
		dir, err := os.MkdirTemp("", "orgmaturity-bin-")
		if err != nil {
			buildErr = fmt.Errorf("create temp dir: %w", err)
			return
		}
		outPath := filepath.Join(dir, "orgmaturity")

		cmd := exec.Command("go", "build", "-trimpath", "-o", outPath, "./cmd/orgmaturity")
		cmd.Dir = root
		cmd.Env = mergeEnv(map[string]string{"CGO_ENABLED": "0"})
		var stdout bytes.Buffer
		var stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			buildErr = fmt.Errorf("go build failed: %w\nstderr:\n%s", err, stderr.String())
			return
		}
		buildPath = outPath
	})

	if buildErr != nil {
		t.Fatalf("build orgmaturity binary: %v", buildErr)
	}
	return buildPath
}
