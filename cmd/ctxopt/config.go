package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/flemzord/ctxopt/internal/config"
	"github.com/spf13/cobra"
)

func configCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(configCheckCmd(g), configInitCmd(g))
	return cmd
}

func configCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}

			oc := cfg.Optimizer(g.projectRoot)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration OK")
			fmt.Fprintf(out, "  project root:  %s\n", oc.ProjectRoot)
			fmt.Fprintf(out, "  store:         %s\n", oc.StorePath)
			fmt.Fprintf(out, "  backups:       %s\n", oc.BackupDir)
			fmt.Fprintf(out, "  retention:     %d conversations, %d days, %d chars, %d code contexts\n",
				oc.MaxConversations, oc.MaxContextAgeDays, oc.MaxSummaryLength, oc.MaxFileContexts)
			fmt.Fprintf(out, "  schedule:      %s\n", cfg.Schedule.Cron)
			return nil
		},
	}
}

func configInitCmd(g *globalFlags) *cobra.Command {
	var (
		path  string
		yes   bool
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively create a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := g.projectRoot
			if root == "" {
				root = "."
			}
			root, err := filepath.Abs(root)
			if err != nil {
				return err
			}
			if path == "" {
				path = filepath.Join(root, ".context", "ctxopt.yaml")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.Default()
			cfg.ProjectRoot = root
			if !yes {
				if err := runInitForm(cmd, cfg); err != nil {
					return err
				}
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Write(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Output file (default: <project>/.context/ctxopt.yaml)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Write defaults without prompting")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// runInitForm prompts for the common settings and writes them into cfg.
func runInitForm(cmd *cobra.Command, cfg *config.Config) error {
	maxConv := strconv.Itoa(cfg.Retention.MaxConversations)
	maxAge := strconv.Itoa(cfg.Retention.MaxContextAgeDays)
	maxSummary := strconv.Itoa(cfg.Retention.MaxSummaryLength)
	maxFiles := strconv.Itoa(cfg.Retention.MaxFileContexts)
	cronExpr := cfg.Schedule.Cron
	listen := cfg.Gateway.Listen
	level := cfg.Log.Level
	runOnStart := cfg.Schedule.RunOnStart

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Conversations to keep").Value(&maxConv).Validate(nonNegative),
			huh.NewInput().Title("Maximum context age (days)").Value(&maxAge).Validate(nonNegative),
			huh.NewInput().Title("Maximum summary length (characters)").Value(&maxSummary).Validate(nonNegative),
			huh.NewInput().Title("Code contexts to keep").Value(&maxFiles).Validate(nonNegative),
		).Title("Retention"),
		huh.NewGroup(
			huh.NewInput().Title("Cron schedule").Value(&cronExpr),
			huh.NewConfirm().Title("Optimize when the scheduler starts?").Value(&runOnStart),
			huh.NewInput().Title("Status server address (empty to disable)").
				Placeholder("127.0.0.1:9464").Value(&listen),
			huh.NewSelect[string]().Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).Value(&level),
		).Title("Scheduler"),
	).WithInput(cmd.InOrStdin()).WithOutput(cmd.OutOrStdout())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return errors.New("aborted")
		}
		return err
	}

	// Validated by the form.
	cfg.Retention.MaxConversations, _ = strconv.Atoi(maxConv)
	cfg.Retention.MaxContextAgeDays, _ = strconv.Atoi(maxAge)
	cfg.Retention.MaxSummaryLength, _ = strconv.Atoi(maxSummary)
	cfg.Retention.MaxFileContexts, _ = strconv.Atoi(maxFiles)
	cfg.Schedule.Cron = cronExpr
	cfg.Schedule.RunOnStart = runOnStart
	cfg.Gateway.Listen = listen
	cfg.Log.Level = level
	return nil
}

func nonNegative(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return errors.New("enter a whole number, 0 or more")
	}
	return nil
}
