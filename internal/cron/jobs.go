package cron

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/ctxopt/internal/optimizer"
)

// OptimizeJobName is the name of the scheduled optimization job.
const OptimizeJobName = "optimize"

// DefaultOptimizeSchedule runs the optimizer daily at 03:00.
const DefaultOptimizeSchedule = "0 3 * * *"

// Runner is the subset of optimizer.Optimizer needed by OptimizeJob.
type Runner interface {
	Run(ctx context.Context) (*optimizer.Report, error)
}

// OptimizeJob runs a full optimization pass on each tick.
type OptimizeJob struct {
	Runner       Runner
	Logger       *slog.Logger
	ScheduleExpr string // empty = DefaultOptimizeSchedule

	// OnReport, when set, receives every report, degraded or not.
	OnReport func(*optimizer.Report)
}

// Compile-time interface check.
var _ Job = (*OptimizeJob)(nil)

// Name implements Job.
func (j *OptimizeJob) Name() string { return OptimizeJobName }

// Schedule implements Job.
func (j *OptimizeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return DefaultOptimizeSchedule
}

// Run executes one optimization pass. Step failures are logged and
// reported but do not fail the job; only cancellation does.
func (j *OptimizeJob) Run(ctx context.Context) error {
	rep, err := j.Runner.Run(ctx)
	if rep != nil && j.OnReport != nil {
		j.OnReport(rep)
	}
	if err != nil {
		return fmt.Errorf("cron: optimize: %w", err)
	}

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if !rep.Before.Exists && rep.OK() {
		logger.Debug("cron: no context store, nothing to optimize")
		return nil
	}

	attrs := []any{
		"conversations_removed", rep.Conversations.Removed,
		"code_contexts_removed", rep.CodeContexts.Removed,
		"temp_files_removed", len(rep.TempFiles.Removed),
		"size_delta_bytes", rep.SizeDelta,
		"backup", rep.BackupPath,
		"duration", rep.Duration,
	}
	if !rep.OK() {
		for _, e := range rep.Errors {
			logger.Warn("cron: optimize step failed", "step", e.Step, "error", e.Error)
		}
		logger.Warn("cron: optimization finished with errors", attrs...)
		return nil
	}
	logger.Info("cron: optimization finished", attrs...)
	return nil
}
