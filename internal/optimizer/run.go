package optimizer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Step names used in reports and logs.
const (
	StepAnalyze       = "analyze"
	StepBackup        = "backup"
	StepConversations = "conversations"
	StepCodeContexts  = "code_contexts"
	StepClean         = "clean"
	StepCompact       = "compact"
)

// StepError records a step that failed during a run.
type StepError struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// Report is the outcome of a full optimization run.
type Report struct {
	Started       time.Time          `json:"started"`
	Finished      time.Time          `json:"finished"`
	Duration      time.Duration      `json:"duration_ns"`
	Before        Stats              `json:"before"`
	After         Stats              `json:"after"`
	BackupPath    string             `json:"backup_path,omitempty"`
	Conversations ConversationResult `json:"conversations"`
	CodeContexts  CodeContextResult  `json:"code_contexts"`
	TempFiles     CleanResult        `json:"temp_files"`
	Vacuumed      bool               `json:"vacuumed"`
	SizeDelta     int64              `json:"size_delta_bytes"`
	Errors        []StepError        `json:"errors,omitempty"`
}

// OK reports whether every step succeeded.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

func (r *Report) fail(step string, err error) {
	r.Errors = append(r.Errors, StepError{Step: step, Error: err.Error()})
}

// Run performs a full pass: analyze, backup, prune conversations, prune code
// contexts, clean temp files, compact, analyze again. Step failures are
// logged and recorded in the report. A failed backup leaves the store
// untouched for this run. When the store does not exist the run is a no-op.
//
// The returned error is non-nil only when ctx is cancelled between steps.
func (o *Optimizer) Run(ctx context.Context) (rep *Report, err error) {
	ctx, span := startSpan(ctx, "Run", attribute.String("store_path", o.cfg.StorePath))
	defer func() { endSpan(span, err) }()

	rep = &Report{Started: o.now()}
	defer func() {
		rep.Finished = o.now()
		rep.Duration = rep.Finished.Sub(rep.Started)
		span.SetAttributes(attribute.Int("errors", len(rep.Errors)))
	}()

	if !o.StoreExists() {
		o.logger.Info("no context store found, nothing to optimize", "path", o.cfg.StorePath)
		return rep, nil
	}

	before, err := o.Analyze(ctx)
	if err != nil {
		o.logger.Error("optimizer: analyze failed", "error", err)
		rep.fail(StepAnalyze, err)
	}
	rep.Before = before
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	backupPath, err := o.backupAt(ctx, rep.Started)
	backedUp := err == nil
	if backedUp {
		rep.BackupPath = backupPath
	} else {
		o.logger.Error("optimizer: backup failed, skipping store changes", "error", err)
		rep.fail(StepBackup, err)
	}

	if backedUp {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		conv, err := o.PruneConversations(ctx)
		if err != nil {
			o.logger.Error("optimizer: conversation pruning failed", "error", err)
			rep.fail(StepConversations, err)
		}
		rep.Conversations = conv

		if err := ctx.Err(); err != nil {
			return rep, err
		}
		code, err := o.PruneCodeContexts(ctx)
		if err != nil {
			o.logger.Error("optimizer: code context pruning failed", "error", err)
			rep.fail(StepCodeContexts, err)
		}
		rep.CodeContexts = code
	}

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	rep.TempFiles = o.CleanTempFiles(ctx)
	if n := len(rep.TempFiles.Failed); n > 0 {
		rep.fail(StepClean, fmt.Errorf("%d temp files could not be removed", n))
	}

	if backedUp {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := o.Compact(ctx); err != nil {
			o.logger.Error("optimizer: compaction failed", "error", err)
			rep.fail(StepCompact, err)
		} else {
			rep.Vacuumed = true
		}
	}

	after, err := o.Analyze(ctx)
	if err != nil {
		o.logger.Error("optimizer: final analyze failed", "error", err)
		rep.fail(StepAnalyze, err)
	}
	rep.After = after
	rep.SizeDelta = rep.Before.SizeBytes - rep.After.SizeBytes

	o.logger.Info("optimization complete",
		"conversations", rep.After.Conversations,
		"code_contexts", rep.After.CodeContexts,
		"size_delta_bytes", rep.SizeDelta,
		"backup", rep.BackupPath,
		"errors", len(rep.Errors),
	)
	return rep, nil
}
