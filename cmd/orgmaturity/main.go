package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"orgmaturity/internal/assessment"
	"orgmaturity/internal/audit"
	"orgmaturity/internal/framework"
	"orgmaturity/internal/report"
	"orgmaturity/internal/scoring"
	"orgmaturity/internal/workspace"
)

const appName = "orgmaturity"

var logger = zap.NewNop()

type globalFlags struct {
	Workspace string
	Verbose   bool
}

func main() {
	flag.String("workspace", "", "Path to workspace root")
	flag.Bool("verbose", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s: organizational maturity scoring and gap analysis\n\n", appName)
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [command] [flags]\n\n", appName)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  init       Initialize a new workspace")
		fmt.Fprintln(os.Stderr, "  report     Score an assessment and list its gaps")
		fmt.Fprintln(os.Stderr, "  diff       Compare two reports (default: the two newest saved)")
		fmt.Fprintln(os.Stderr, "  watch      Re-render a report whenever an assessment changes")
		fmt.Fprintln(os.Stderr, "  serve      Serve an interactive assessment over HTTP")
		fmt.Fprintln(os.Stderr, "  framework  Print the maturity framework")
		fmt.Fprintln(os.Stderr, "  audit      List recent audit events")
		fmt.Fprintln(os.Stderr, "  help       Show this help")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	globals, args, err := extractGlobalFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		flag.Usage()
		return
	}

	logger, err = newLogger(globals.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(args[0], args[1:], globals.Workspace); err != nil {
		_ = logger.Sync()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(command string, args []string, workspacePath string) error {
	switch command {
	case "init":
		return runInit(args, workspacePath)
	case "report":
		return runReport(args, workspacePath)
	case "diff":
		return runDiff(args, workspacePath)
	case "watch":
		return runWatch(args, workspacePath)
	case "serve":
		return runServe(args, workspacePath)
	case "framework":
		return runFramework(args, workspacePath)
	case "audit":
		return runAudit(args, workspacePath)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.Named(appName), nil
}

func extractGlobalFlags(args []string) (globalFlags, []string, error) {
	var globals globalFlags
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--workspace":
			if i+1 >= len(args) {
				return globalFlags{}, nil, fmt.Errorf("--workspace requires a value")
			}
			globals.Workspace = args[i+1]
			i++
		case strings.HasPrefix(arg, "--workspace="):
			globals.Workspace = strings.TrimPrefix(arg, "--workspace=")
		case arg == "--verbose":
			globals.Verbose = true
		default:
			remaining = append(remaining, arg)
		}
	}
	return globals, remaining, nil
}

func resolveWorkspace(root string) (*workspace.Workspace, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("--workspace is required")
	}
	ws, err := workspace.Resolve(root)
	if err != nil {
		return nil, err
	}
	if err := ws.EnsureDirs(); err != nil {
		return nil, err
	}
	return ws, nil
}

func auditLoggerFor(ws *workspace.Workspace, override string) (*audit.Logger, error) {
	if override == "" {
		return audit.NewLogger(ws.AuditDBPath), nil
	}
	path, err := ws.ResolvePath(override)
	if err != nil {
		return nil, fmt.Errorf("resolve --audit-db: %w", err)
	}
	return audit.NewLogger(path), nil
}

// audited records <name>_started and <name>_finished around fn. fn may add
// fields to the finish payload.
func audited(l *audit.Logger, name string, payload map[string]any, fn func(finish map[string]any) error) error {
	if logErr := l.LogEvent("cli", name+"_started", payload); logErr != nil {
		logger.Warn("audit log failed", zap.String("event", name+"_started"), zap.Error(logErr))
	}
	finish := make(map[string]any, len(payload)+2)
	for k, v := range payload {
		finish[k] = v
	}
	err := fn(finish)
	if err != nil {
		finish["error"] = err.Error()
	}
	if logErr := l.LogEvent("cli", name+"_finished", finish); logErr != nil {
		logger.Warn("audit log failed", zap.String("event", name+"_finished"), zap.Error(logErr))
	}
	return err
}

func loadFramework(ws *workspace.Workspace, override string) (*framework.Framework, error) {
	var (
		path string
		err  error
	)
	if override != "" {
		path, err = ws.ResolvePath(override)
	} else {
		path, err = ws.FrameworkFile()
	}
	if err != nil {
		return nil, err
	}
	fw, err := framework.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("framework loaded", zap.String("source", fw.Source), zap.Int("elements", fw.Registry.Len()))
	return fw, nil
}

func loadState(ws *workspace.Workspace, fw *framework.Framework, assessmentPath string) (*assessment.State, error) {
	if assessmentPath == "" {
		return assessment.NewState(fw.Registry), nil
	}
	path, err := ws.ResolvePath(assessmentPath)
	if err != nil {
		return nil, fmt.Errorf("resolve --assessment: %w", err)
	}
	return assessment.LoadFile(path, fw.Registry)
}

type scoreOverrides []string

func (s *scoreOverrides) String() string { return strings.Join(*s, ",") }

func (s *scoreOverrides) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func runInit(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	withFramework := fs.Bool("with-framework", false, "Write the reference framework to <workspace>/framework.yml for editing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(workspacePath) == "" {
		return fmt.Errorf("--workspace is required")
	}

	root, err := workspace.ResolveRoot(workspacePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	ws, err := resolveWorkspace(root)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"workspace":      ws.Root,
		"with_framework": *withFramework,
	}
	return audited(audit.NewLogger(ws.AuditDBPath), "workspace_init", payload, func(map[string]any) error {
		sample := filepath.Join(ws.AssessmentsDir, "baseline.yml")
		if err := writeFileIfMissing(sample, sampleAssessmentTemplate); err != nil {
			return err
		}
		if *withFramework {
			if err := writeFileIfMissing(ws.FrameworkPath, string(framework.DefaultYAML())); err != nil {
				return err
			}
		}

		fmt.Fprintf(os.Stdout, "Initialized workspace: %s\n", ws.Root)
		fmt.Fprintln(os.Stdout, "Next steps:")
		fmt.Fprintf(os.Stdout, "  %s report --workspace %s --assessment assessments/baseline.yml\n", appName, ws.Root)
		fmt.Fprintf(os.Stdout, "  %s serve --workspace %s --assessment assessments/baseline.yml\n", appName, ws.Root)
		return nil
	})
}

func runReport(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	frameworkPath := fs.String("framework", "", "Path to framework YAML (default: <workspace>/framework.yml or built-in)")
	assessmentPath := fs.String("assessment", "", "Path to assessment YAML (default: every element at level 1)")
	target := fs.Int("target", int(assessment.DefaultTargetLevel), "Target maturity level (1-5); overrides the assessment")
	var overrides scoreOverrides
	fs.Var(&overrides, "score", "Score override element=level (repeatable)")
	top := fs.Int("top", scoring.DefaultTopN, "Number of top gaps that receive recommendations")
	format := fs.String("format", "text", "Output format: text or json")
	output := fs.String("output", "", "Write the report to this path instead of stdout")
	save := fs.Bool("save", false, "Also save the JSON report under <workspace>/reports")
	auditDB := fs.String("audit-db", "", "Path to audit SQLite DB (default: <workspace>/audit/audit.sqlite)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *format != "text" && *format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", *format)
	}
	targetSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "target" {
			targetSet = true
		}
	})

	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}
	auditLogger, err := auditLoggerFor(ws, *auditDB)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"workspace":  ws.Root,
		"assessment": *assessmentPath,
		"format":     *format,
		"top":        *top,
	}
	return audited(auditLogger, "report", payload, func(finish map[string]any) error {
		fw, err := loadFramework(ws, *frameworkPath)
		if err != nil {
			return err
		}
		state, err := loadState(ws, fw, *assessmentPath)
		if err != nil {
			return err
		}
		if targetSet {
			if err := state.SetTargetLevel(framework.Level(*target)); err != nil {
				return err
			}
		}
		for _, raw := range overrides {
			id, level, err := assessment.ParseOverride(raw)
			if err != nil {
				return err
			}
			if err := state.SetScore(id, level); err != nil {
				return err
			}
		}

		analysis, err := scoring.Analyze(fw, state, *top)
		if err != nil {
			return err
		}
		now := time.Now()
		rep, err := report.Build(fw, state, analysis, *top, now)
		if err != nil {
			return err
		}
		finish["report_id"] = rep.ID
		finish["target_level"] = int(rep.TargetLevel)
		finish["completion_percentage"] = rep.Overall.CompletionPercentage
		finish["gaps"] = len(rep.Gaps)

		if *save {
			path := report.PathFor(ws.ReportsDir, now, rep.ID)
			if err := report.WriteJSON(path, rep); err != nil {
				return err
			}
			finish["saved"] = path
			logger.Info("report saved", zap.String("path", path))
		}

		if *output != "" {
			path, err := ws.ResolvePath(*output)
			if err != nil {
				return fmt.Errorf("resolve --output: %w", err)
			}
			if *format == "json" {
				err = report.WriteJSON(path, rep)
			} else {
				err = report.WriteText(path, rep)
			}
			if err != nil {
				return err
			}
			finish["output"] = path
			fmt.Fprintf(os.Stdout, "Wrote report: %s\n", path)
			return nil
		}
		return printReport(rep, *format)
	})
}

func printReport(rep *report.Report, format string) error {
	if format == "json" {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	}
	fmt.Fprint(os.Stdout, report.RenderText(rep))
	return nil
}

func runDiff(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	auditDB := fs.String("audit-db", "", "Path to audit SQLite DB (default: <workspace>/audit/audit.sqlite)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 2 {
		return fmt.Errorf("%s diff: expected at most two report paths, got %d", appName, fs.NArg())
	}

	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}
	auditLogger, err := auditLoggerFor(ws, *auditDB)
	if err != nil {
		return err
	}
	from, to, err := diffPaths(ws, fs.Args())
	if err != nil {
		return err
	}

	payload := map[string]any{
		"workspace": ws.Root,
		"from":      from,
		"to":        to,
	}
	return audited(auditLogger, "report_diff", payload, func(finish map[string]any) error {
		reports := make([]*report.Report, 0, 2)
		for _, path := range []string{from, to} {
			rep, err := report.LoadJSON(path)
			if err != nil {
				return err
			}
			reports = append(reports, rep)
		}

		diff, err := report.Diff(reports[0], reports[1], displayPath(ws, from), displayPath(ws, to))
		if err != nil {
			return err
		}
		finish["changed"] = diff != ""
		if diff == "" {
			fmt.Fprintln(os.Stdout, "No differences.")
			return nil
		}
		fmt.Fprint(os.Stdout, diff)
		return nil
	})
}

// diffPaths picks the reports to compare. With no arguments it takes the two
// newest saved reports; with one it compares that report to the newest.
func diffPaths(ws *workspace.Workspace, args []string) (string, string, error) {
	resolved := make([]string, 0, len(args))
	for _, arg := range args {
		path, err := ws.ResolvePath(arg)
		if err != nil {
			return "", "", err
		}
		resolved = append(resolved, path)
	}
	switch len(resolved) {
	case 2:
		return resolved[0], resolved[1], nil
	case 1:
		latest, err := report.LatestPath(ws.ReportsDir)
		if err != nil {
			return "", "", err
		}
		return resolved[0], latest, nil
	}
	history, err := report.History(ws.ReportsDir)
	if err != nil {
		return "", "", err
	}
	if len(history) < 2 {
		return "", "", fmt.Errorf("need two saved reports in %s, found %d (run report --save)", ws.ReportsDir, len(history))
	}
	return history[len(history)-2], history[len(history)-1], nil
}

func displayPath(ws *workspace.Workspace, path string) string {
	if rel, err := filepath.Rel(ws.Root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

func runFramework(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("framework", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	frameworkPath := fs.String("framework", "", "Path to framework YAML (default: <workspace>/framework.yml or built-in)")
	level := fs.Int("level", int(assessment.DefaultTargetLevel), "Level whose weights are shown")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := framework.CheckLevel(framework.Level(*level)); err != nil {
		return fmt.Errorf("--level: %w", err)
	}

	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}
	fw, err := loadFramework(ws, *frameworkPath)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Framework: %s\n", fw.Source)
	fmt.Fprintln(os.Stdout, "Levels:")
	for _, l := range fw.Levels() {
		fmt.Fprintf(os.Stdout, "  %d. %s\n", l.Level, l.Name)
	}
	fmt.Fprintf(os.Stdout, "Weights at level %d:\n", *level)
	for _, d := range fw.Registry.Domains() {
		fmt.Fprintf(os.Stdout, "%s (%s)\n", d.Name, d.ID)
		for _, c := range d.Components {
			fmt.Fprintf(os.Stdout, "  %s (%s)\n", c.Name, c.ID)
			for _, el := range c.Elements {
				w, err := fw.Weights.WeightOf(framework.Level(*level), el.ID)
				if err != nil {
					return err
				}
				steps, err := fw.Recommendations.Lookup(el.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stdout, "    %-8s %-40s weight=%.2f steps=%d\n", el.ID, el.Name, w, len(steps))
			}
		}
	}
	return nil
}

func runAudit(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 20, "Number of events to show")
	auditDB := fs.String("audit-db", "", "Path to audit SQLite DB (default: <workspace>/audit/audit.sqlite)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}
	auditLogger, err := auditLoggerFor(ws, *auditDB)
	if err != nil {
		return err
	}
	events, err := auditLogger.Recent(*limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(os.Stdout, "No audit events.")
		return nil
	}
	for _, ev := range events {
		fmt.Fprintf(os.Stdout, "%s  %-24s %-6s %s\n", ev.TS.UTC().Format(time.RFC3339), ev.Type, ev.Actor, string(ev.Payload))
	}
	return nil
}

func writeFileIfMissing(path string, contents string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", path, err)
	}
	return os.WriteFile(path, []byte(contents), 0o644)
}

const sampleAssessmentTemplate = `# Raw maturity levels (1-5) per element. Unlisted elements stay at level 1.
name: baseline
target_level: 3
scores:
  vm: 2
  vc: 2
  cc: 1
  go: 3
  li: 2
`
