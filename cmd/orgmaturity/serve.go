package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"orgmaturity/internal/assessment"
	"orgmaturity/internal/report"
	"orgmaturity/internal/scoring"
	"orgmaturity/internal/server"
	"orgmaturity/internal/watch"
)

func runWatch(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	frameworkPath := fs.String("framework", "", "Path to framework YAML (default: <workspace>/framework.yml or built-in)")
	assessmentPath := fs.String("assessment", "", "Path to the assessment YAML to watch")
	top := fs.Int("top", scoring.DefaultTopN, "Number of top gaps that receive recommendations")
	format := fs.String("format", "text", "Output format: text or json")
	debounce := fs.Duration("debounce", watch.DefaultDebounce, "Quiet period before re-rendering")
	auditDB := fs.String("audit-db", "", "Path to audit SQLite DB (default: <workspace>/audit/audit.sqlite)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *assessmentPath == "" {
		return fmt.Errorf("--assessment is required")
	}
	if *format != "text" && *format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", *format)
	}

	ws, err := resolveWorkspace(workspacePath)
	if err != nil {
		return err
	}
	auditLogger, err := auditLoggerFor(ws, *auditDB)
	if err != nil {
		return err
	}
	path, err := ws.ResolvePath(*assessmentPath)
	if err != nil {
		return fmt.Errorf("resolve --assessment: %w", err)
	}

	payload := map[string]any{
		"workspace":  ws.Root,
		"assessment": path,
	}
	return audited(auditLogger, "watch", payload, func(finish map[string]any) error {
		fw, err := loadFramework(ws, *frameworkPath)
		if err != nil {
			return err
		}

		renders := 0
		render := func(_ context.Context, p string) error {
			state, err := assessment.LoadFile(p, fw.Registry)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			analysis, err := scoring.Analyze(fw, state, *top)
			if err != nil {
				return err
			}
			rep, err := report.Build(fw, state, analysis, *top, time.Now())
			if err != nil {
				return err
			}
			renders++
			return printReport(rep, *format)
		}
		if err := render(context.Background(), path); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		w, err := watch.New(path, *debounce, render, logger)
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
		case <-w.Done():
		}
		w.Stop()

		stats := w.Stats()
		finish["renders"] = renders
		finish["errors"] = stats.Errors
		return nil
	})
}

func runServe(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addr := fs.String("addr", ":8080", "Listen address")
	frameworkPath := fs.String("framework", "", "Path to framework YAML (default: <workspace>/framework.yml or built-in)")
	assessmentPath := fs.String("assessment", "", "Initial assessment YAML (default: every element at level 1)")
	reload := fs.Bool("watch", false, "Reload the session when --assessment changes on disk")
	origins := fs.String("allow-origins", "", "Comma-separated CORS origins (default: any)")
	shutdownTimeout := fs.Duration("shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	auditDB := fs.String("audit-db", "", "Path to audit SQLite DB (default: <workspace>/audit/audit.sqlite)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *reload && *assessmentPath == "" {
		return fmt.Errorf("--watch requires --assessment")
	}

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
		"addr":       *addr,
		"assessment": *assessmentPath,
	}
	return audited(auditLogger, "serve", payload, func(map[string]any) error {
		fw, err := loadFramework(ws, *frameworkPath)
		if err != nil {
			return err
		}
		state, err := loadState(ws, fw, *assessmentPath)
		if err != nil {
			return err
		}
		session, err := server.NewSession(fw, state, logger.Named("session"))
		if err != nil {
			return err
		}

		var allow []string
		for _, o := range strings.Split(*origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				allow = append(allow, o)
			}
		}
		gin.SetMode(gin.ReleaseMode)
		api := server.New(session, logger.Named("http"), server.Options{AllowOrigins: allow})
		srv := &http.Server{
			Addr:              *addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if *reload {
			path, err := ws.ResolvePath(*assessmentPath)
			if err != nil {
				return fmt.Errorf("resolve --assessment: %w", err)
			}
			w, err := watch.New(path, watch.DefaultDebounce, func(_ context.Context, p string) error {
				next, err := assessment.LoadFile(p, fw.Registry)
				if err != nil {
					return err
				}
				return session.Replace(next)
			}, logger)
			if err != nil {
				return err
			}
			if err := w.Start(ctx); err != nil {
				return err
			}
			defer w.Stop()
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			logger.Info("listening", zap.String("addr", *addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
			defer cancel()
			logger.Info("shutting down")
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		})

		return g.Wait()
	})
}
