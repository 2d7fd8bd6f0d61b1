// Package main is the entry point for the ctxopt CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/flemzord/ctxopt/internal/config"
	"github.com/flemzord/ctxopt/internal/logging"
	"github.com/flemzord/ctxopt/internal/optimizer"
	"github.com/flemzord/ctxopt/internal/tracing"
	"github.com/spf13/cobra"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every command.
type globalFlags struct {
	configPath  string
	projectRoot string
	logLevel    string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "ctxopt",
		Short:         "Keep the AI assistant context store small and fast",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to configuration file")
	pf.StringVarP(&g.projectRoot, "project", "p", "", "Project root (overrides project_root)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		versionCmd(),
		analyzeCmd(g),
		optimizeCmd(g),
		backupCmd(g),
		cleanCmd(g),
		monitorCmd(g),
		scheduleCmd(g),
		serviceCmd(g),
		mcpCmd(g),
		configCmd(g),
	)
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ctxopt %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// session is what a one-shot command needs: the resolved config, a logger
// and an optimizer bound to the project.
type session struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	opt     *optimizer.Optimizer

	shutdownTracing tracing.ShutdownFunc
}

// load resolves the configuration and builds the optimizer. Callers must
// defer close.
func (g *globalFlags) load(cmd *cobra.Command) (*session, error) {
	cfg, cfgPath, err := config.LoadOrDefault(g.configPath, g.projectRoot)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	levelName := cfg.Log.Level
	if g.logLevel != "" {
		levelName = g.logLevel
	}
	logger, err := logging.New(cmd.ErrOrStderr(), logging.Options{
		Level:   levelName,
		Secrets: logging.Secrets(cfg),
	})
	if err != nil {
		return nil, err
	}

	shutdown, err := tracing.Setup(cmd.Context(), tracing.Config{
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		ServiceVersion: version,
	})
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	logger.Debug("configuration resolved", "config", cfgPath)
	return &session{
		cfg:             cfg,
		cfgPath:         cfgPath,
		logger:          logger,
		opt:             optimizer.New(cfg.Optimizer(g.projectRoot), optimizer.WithLogger(logger)),
		shutdownTracing: shutdown,
	}, nil
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.shutdownTracing(ctx); err != nil {
		s.logger.Warn("tracing shutdown failed", "error", err)
	}
}
