// Package app provides the long-running scheduler daemon shared by the
// "schedule" command and the OS service.
package app

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flemzord/ctxopt/internal/config"
	"github.com/flemzord/ctxopt/internal/gateway"
	"github.com/flemzord/ctxopt/internal/logging"
	"github.com/flemzord/ctxopt/internal/metrics"
	"github.com/flemzord/ctxopt/internal/reload"
	"github.com/flemzord/ctxopt/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

// RunParams configures the daemon.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, the standard locations are searched and built-in defaults
	// apply when none exists.
	ConfigPath string

	// ProjectRoot overrides the configured project root.
	ProjectRoot string

	// LogLevel overrides log.level from the config when non-empty.
	LogLevel string

	// LogOutput receives log lines. Defaults to os.Stderr.
	LogOutput io.Writer

	// Version is injected at build time and labels traces.
	Version string
}

// Run loads configuration, starts the scheduler and the optional status
// server, and blocks until ctx is cancelled or SIGINT/SIGTERM arrives.
// SIGHUP and config file changes trigger a live reload; a config that
// fails to load or validate is logged and the running one is kept.
func Run(ctx context.Context, params RunParams) error {
	cfg, cfgPath, err := config.LoadOrDefault(params.ConfigPath, params.ProjectRoot)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	levelName := cfg.Log.Level
	if params.LogLevel != "" {
		levelName = params.LogLevel
	}
	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, err := logging.New(out, logging.Options{Level: levelName, Secrets: logging.Secrets(cfg)})
	if err != nil {
		return err
	}

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		ServiceVersion: params.Version,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	d := &daemon{
		projectRoot: params.ProjectRoot,
		logger:      logger,
		metrics:     metrics.New("ctxopt"),
		tracker:     &gateway.Tracker{},
	}
	if err := d.apply(ctx, cfg); err != nil {
		return err
	}
	defer d.stop()

	logger.Info("scheduler running",
		"config", displayPath(cfgPath),
		"cron", cfg.Schedule.Cron,
		"store", cfg.Optimizer(params.ProjectRoot).StorePath,
	)

	if cfg.Schedule.RunOnStart {
		go d.runNow(ctx)
	}

	handler := reload.NewHandler(d.apply, logger)

	// --- signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// --- file watcher (only when a file backs the config) ---
	var events <-chan reload.Event
	if cfgPath != "" {
		watcher := reload.NewWatcher(reload.WatcherConfig{ConfigPath: cfgPath})
		watcher.Start(ctx)
		defer watcher.Stop()
		events = watcher.Events()
	}

	// --- main event loop ---
	for {
		select {
		case <-ctx.Done():
			logger.Info("shutdown requested")
			return nil
		case sig := <-sigCh:
			if sig != syscall.SIGHUP {
				logger.Info("shutdown signal received", "signal", sig.String())
				return nil
			}
			logger.Info("SIGHUP received, reloading configuration")
			if err := handler.HandleReload(ctx, cfgPath); err != nil {
				logger.Error("reload failed", "error", err)
			}
		case evt := <-events:
			logger.Info("config file changed, reloading", "path", evt.ConfigPath, "event", evt.Type)
			if err := handler.HandleReload(ctx, cfgPath); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
	}
}

func displayPath(path string) string {
	if path == "" {
		return "(defaults)"
	}
	return path
}
