package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/flemzord/ctxopt/internal/monitor"
	"github.com/spf13/cobra"
)

type monitorOutput struct {
	Usage           monitor.Usage           `json:"usage"`
	TotalTokens     int                     `json:"total_tokens"`
	Assessment      monitor.Level           `json:"assessment"`
	Recommendations []string                `json:"recommendations"`
	Settings        *monitor.SettingsReport `json:"settings,omitempty"`
}

func monitorCmd(g *globalFlags) *cobra.Command {
	var (
		asJSON       bool
		settingsPath string
	)
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Estimate editor context token usage and check editor settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			usage, err := monitor.AnalyzeConfig(s.opt.Config().ProjectRoot)
			if err != nil {
				return err
			}
			out := monitorOutput{
				Usage:           usage,
				TotalTokens:     usage.Total(),
				Assessment:      monitor.Assess(usage.Total()),
				Recommendations: monitor.Recommend(usage),
			}

			if settingsPath == "" {
				settingsPath, err = monitor.DefaultSettingsPath()
			}
			if err == nil {
				var report monitor.SettingsReport
				report, err = monitor.CheckSettings(settingsPath)
				if err == nil {
					out.Settings = &report
				}
			}
			switch {
			case errors.Is(err, monitor.ErrSettingsNotFound):
				s.logger.Info("editor settings not found", "path", settingsPath)
			case err != nil:
				s.logger.Warn("editor settings not checked", "error", err)
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			printMonitor(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")
	cmd.Flags().StringVar(&settingsPath, "settings", "", "Editor settings.json (default: Cursor user settings)")
	return cmd
}

func printMonitor(w io.Writer, out monitorOutput) {
	fmt.Fprintln(w, "Static context:")
	for _, f := range out.Usage.Files {
		fmt.Fprintf(w, "  %-24s %8d tokens\n", f.Path, f.Tokens)
	}
	if total, ok := out.Usage.ByKey[monitor.RulesTotalKey]; ok {
		fmt.Fprintf(w, "  %-24s %8d tokens (%d files)\n", "rules", total, len(out.Usage.Rules))
	}
	fmt.Fprintf(w, "  %-24s %8d tokens (%s)\n", "total", out.TotalTokens, out.Assessment)

	fmt.Fprintln(w, "Recommendations:")
	for _, r := range out.Recommendations {
		fmt.Fprintf(w, "  %s\n", r)
	}

	if out.Settings == nil {
		return
	}
	fmt.Fprintf(w, "Settings (%s):\n", out.Settings.Path)
	for _, issue := range out.Settings.Issues {
		fmt.Fprintf(w, "  [issue] %s\n", issue)
	}
	for _, good := range out.Settings.Good {
		fmt.Fprintf(w, "  [ok]    %s\n", good)
	}
	if out.Settings.HangRisk {
		fmt.Fprintln(w, "  Risk: token limit low enough to trigger summarization loops")
	}
}
