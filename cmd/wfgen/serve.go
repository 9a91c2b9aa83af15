package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GoCodeAlone/wfgen/api"
	"github.com/GoCodeAlone/wfgen/compiler"
	"github.com/GoCodeAlone/wfgen/config"
	"github.com/GoCodeAlone/wfgen/observability/tracing"
)

const shutdownTimeout = 15 * time.Second

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a wfgen YAML config file")
	addr := fs.String("addr", "", "Listen address (overrides the config)")
	provider := fs.String("provider", "", "Completion provider: auto, anthropic, openai, copilot, ollama or mock")
	watch := fs.Bool("watch", false, "Reload the catalog and rules files when they change")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `Usage: wfgen serve [options]

Run the wfgen HTTP API:

  POST /api/workflows/generate   generate a workflow from {"task": "..."}
  POST /api/workflows/assemble   assemble {"name": "...", "steps": [...]}
  GET  /api/workflows/stream     WebSocket: progress frames, then the result
  GET  /api/nodes                catalog browsing (?category, /search?q, /lookup?type)
  GET  /healthz, /metrics

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, done, err := setup(ctx, *configPath, func(cfg *config.Config) {
		if *addr != "" {
			cfg.Server.Addr = *addr
		}
		if *provider != "" {
			cfg.Provider = *provider
		}
		if *watch {
			cfg.Server.Watch = true
		}
	}, stderr, true)
	defer done.run()
	if err != nil {
		return err
	}
	cfg, logger := deps.cfg, deps.logger

	if cfg.Tracing.ServiceVersion == "" {
		cfg.Tracing.ServiceVersion = version
	}
	tp, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()
	deps.tracer = tp.Tracer()
	if tp.Enabled() {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	gen, err := deps.newGenerator()
	if err != nil {
		return err
	}
	var current atomic.Pointer[compiler.Generator]
	current.Store(gen)

	router := api.NewRouter(current.Load, api.Config{
		JWTSecret:   cfg.Server.JWTSecret,
		RateLimit:   cfg.Server.RateLimit,
		Burst:       cfg.Server.Burst,
		Recorder:    deps.metrics,
		Metrics:     deps.metrics.Handler(),
		MetricsPath: deps.metrics.Path(),
		Tracing:     tp.Enabled(),
		Logger:      logger,
	})
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	var watcher *config.FileWatcher
	if files := cfg.WatchedFiles(); cfg.Server.Watch && len(files) > 0 {
		watcher = config.NewFileWatcher(files, func(evt config.FileChangeEvent) {
			next, err := deps.newGenerator()
			if err != nil {
				logger.Error("reload failed; keeping previous catalog and rules", "path", evt.Path, "error", err)
				return
			}
			current.Store(next)
			logger.Info("catalog and rules reloaded", "path", evt.Path, "nodes", next.Registry().Len())
		}, config.WithWatchLogger(logger))
		if err := watcher.Start(); err != nil {
			return fmt.Errorf("watch config files: %w", err)
		}
	} else if cfg.Server.Watch {
		logger.Warn("watch requested but no catalog or rules path is configured")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr, "nodes", gen.Registry().Len(), "auth", cfg.Server.JWTSecret != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if watcher != nil {
			_ = watcher.Stop()
		}
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}
