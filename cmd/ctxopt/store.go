package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/flemzord/ctxopt/internal/metrics"
	"github.com/flemzord/ctxopt/internal/optimizer"
	"github.com/spf13/cobra"
)

func analyzeCmd(g *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Report the size and contents of the context store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			stats, err := s.opt.Analyze(cmd.Context())
			if err != nil {
				// Reported, not fatal: the store is unreadable but the
				// invocation was valid.
				s.logger.Error("analyze failed", "error", err)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			printStats(cmd.OutOrStdout(), s.opt.Config().StorePath, stats)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")
	return cmd
}

func optimizeCmd(g *globalFlags) *cobra.Command {
	var (
		asJSON      bool
		metricsFile string
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Back up, prune, clean and compact in one pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			rep, err := s.opt.Run(cmd.Context())
			if err != nil {
				return err
			}

			if metricsFile == "" {
				metricsFile = s.cfg.Metrics.Textfile
			}
			if metricsFile != "" {
				m := metrics.New("ctxopt")
				m.ObserveReport(rep)
				if err := m.WriteTextfile(metricsFile); err != nil {
					s.logger.Warn("metrics textfile not written", "error", err)
				}
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			printReport(cmd.OutOrStdout(), s.opt.Config().StorePath, rep)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	return cmd
}

func backupCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the context store to a timestamped backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			out := cmd.OutOrStdout()
			path, err := s.opt.Backup(cmd.Context())
			switch {
			case errors.Is(err, optimizer.ErrStoreNotFound):
				fmt.Fprintf(out, "No context store to back up at %s\n", s.opt.Config().StorePath)
			case err != nil:
				fmt.Fprintf(out, "Backup failed: %v\n", err)
			default:
				fmt.Fprintf(out, "Context backed up to: %s\n", path)
			}
			return nil
		},
	}
}

func cleanCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Delete temporary AI session files from the project root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.load(cmd)
			if err != nil {
				return err
			}
			defer s.close()

			res := s.opt.CleanTempFiles(cmd.Context())
			printClean(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printStats(w io.Writer, path string, st optimizer.Stats) {
	if !st.Exists {
		fmt.Fprintf(w, "No context store found at %s\n", path)
		return
	}
	fmt.Fprintf(w, "Context store: %s\n", path)
	fmt.Fprintf(w, "  Size:          %.2f MB\n", st.SizeMB())
	fmt.Fprintf(w, "  Conversations: %d\n", st.Conversations)
	fmt.Fprintf(w, "  Code contexts: %d\n", st.CodeContexts)
	if !st.Oldest.IsZero() {
		fmt.Fprintf(w, "  Oldest:        %s\n", st.Oldest.Format(time.RFC3339))
		fmt.Fprintf(w, "  Newest:        %s\n", st.Newest.Format(time.RFC3339))
	}
}

func printReport(w io.Writer, path string, rep *optimizer.Report) {
	if !rep.Before.Exists && rep.OK() {
		fmt.Fprintf(w, "No context store found at %s, nothing to optimize\n", path)
		return
	}

	c, k := rep.Conversations, rep.CodeContexts
	fmt.Fprintln(w, "Optimization complete")
	if rep.BackupPath != "" {
		fmt.Fprintf(w, "  Backup:        %s\n", rep.BackupPath)
	}
	fmt.Fprintf(w, "  Conversations: %d removed (%d expired, %d over limit), %d truncated, %d remaining\n",
		c.Removed, c.RemovedExpired, c.RemovedOverflow, c.Truncated, c.Remaining)
	fmt.Fprintf(w, "  Code contexts: %d removed (%d missing files, %d expired, %d over limit), %d remaining\n",
		k.Removed, k.RemovedMissing, k.RemovedExpired, k.RemovedOverflow, k.Remaining)
	fmt.Fprintf(w, "  Temp files:    %d removed, %d failed\n", len(rep.TempFiles.Removed), len(rep.TempFiles.Failed))
	fmt.Fprintf(w, "  Size:          %.2f MB -> %.2f MB (reclaimed %.2f MB)\n",
		rep.Before.SizeMB(), rep.After.SizeMB(), float64(rep.SizeDelta)/(1024*1024))
	fmt.Fprintf(w, "  Duration:      %s\n", rep.Duration.Round(time.Millisecond))

	if !rep.OK() {
		fmt.Fprintln(w, "Completed with errors:")
		for _, e := range rep.Errors {
			fmt.Fprintf(w, "  %s: %s\n", e.Step, e.Error)
		}
	}
}

func printClean(w io.Writer, res optimizer.CleanResult) {
	for _, p := range res.Removed {
		fmt.Fprintf(w, "Removed: %s\n", p)
	}
	for _, f := range res.Failed {
		fmt.Fprintf(w, "Could not remove %s: %s\n", f.Path, f.Error)
	}
	fmt.Fprintf(w, "%d temporary files removed\n", len(res.Removed))
}
