package optimizer

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/flemzord/ctxopt/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

// CodeContextResult summarizes a code-context pruning pass.
type CodeContextResult struct {
	Removed         int `json:"removed"`
	RemovedMissing  int `json:"removed_missing"`
	RemovedExpired  int `json:"removed_expired"`
	RemovedOverflow int `json:"removed_overflow"`
	Remaining       int `json:"remaining"`
}

// PruneCodeContexts deletes records whose file is gone, records older than
// the age horizon, and finally everything outside the MaxFileContexts
// highest complexity scores. All deletes share one transaction.
func (o *Optimizer) PruneCodeContexts(ctx context.Context) (res CodeContextResult, err error) {
	ctx, span := startSpan(ctx, "PruneCodeContexts",
		attribute.Int("max_file_contexts", o.cfg.MaxFileContexts),
	)
	defer func() {
		span.SetAttributes(
			attribute.Int("removed", res.Removed),
			attribute.Int("removed_missing", res.RemovedMissing),
		)
		endSpan(span, err)
	}()

	s, err := o.openStore()
	if err != nil {
		return CodeContextResult{}, err
	}
	defer o.closeStore(s)

	horizon := o.cfg.AgeHorizon(o.now())

	err = s.Update(ctx, func(tx *store.Tx) error {
		recs, err := tx.CodeContexts(ctx)
		if err != nil {
			return err
		}

		var missing, expired []string
		kept := recs[:0]
		for _, r := range recs {
			switch {
			case !o.fileExists(r.FilePath):
				missing = append(missing, r.FilePath)
			case r.Dated() && r.LastModified.Before(horizon):
				expired = append(expired, r.FilePath)
			default:
				kept = append(kept, r)
			}
		}
		if res.RemovedMissing, err = tx.DeleteCodeContexts(ctx, missing); err != nil {
			return err
		}
		if res.RemovedExpired, err = tx.DeleteCodeContexts(ctx, expired); err != nil {
			return err
		}

		var overflow []string
		if len(kept) > o.cfg.MaxFileContexts {
			slices.SortFunc(kept, mostComplexFirst)
			for _, r := range kept[o.cfg.MaxFileContexts:] {
				overflow = append(overflow, r.FilePath)
			}
			kept = kept[:o.cfg.MaxFileContexts]
		}
		if res.RemovedOverflow, err = tx.DeleteCodeContexts(ctx, overflow); err != nil {
			return err
		}

		res.Remaining = len(kept)
		return nil
	})
	if err != nil {
		return CodeContextResult{}, err
	}

	res.Removed = res.RemovedMissing + res.RemovedExpired + res.RemovedOverflow
	o.logger.Info("code contexts optimized",
		"removed", res.Removed,
		"missing_files", res.RemovedMissing,
		"expired", res.RemovedExpired,
		"overflow", res.RemovedOverflow,
		"remaining", res.Remaining,
	)
	return res, nil
}

// fileExists resolves path against the project root. Only a definite
// "does not exist" counts as missing; other stat errors keep the record.
func (o *Optimizer) fileExists(path string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(o.cfg.ProjectRoot, path)
	}
	_, err := os.Stat(path)
	if err == nil {
		return true
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false
	}
	o.logger.Warn("optimizer: stat code context file failed, keeping record", "path", path, "error", err)
	return true
}

// mostComplexFirst orders by complexity score descending, then file path.
func mostComplexFirst(a, b store.CodeContextRecord) int {
	if c := cmp.Compare(b.ComplexityScore, a.ComplexityScore); c != 0 {
		return c
	}
	return strings.Compare(a.FilePath, b.FilePath)
}
