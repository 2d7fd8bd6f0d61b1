package optimizer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.opentelemetry.io/otel/attribute"
)

// CleanFailure records a temp file that could not be removed.
type CleanFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// CleanResult lists what a temp-file sweep removed and what it could not.
type CleanResult struct {
	Removed []string       `json:"removed"`
	Failed  []CleanFailure `json:"failed,omitempty"`
}

// CleanTempFiles deletes files in the project root matching TempPatterns.
// The scan is not recursive and directories are ignored. A failed delete is
// logged and recorded; the sweep continues.
func (o *Optimizer) CleanTempFiles(ctx context.Context) CleanResult {
	_, span := startSpan(ctx, "CleanTempFiles", attribute.String("project_root", o.cfg.ProjectRoot))
	defer span.End()

	var res CleanResult
	seen := make(map[string]struct{})

	// Patterns are matched against names inside the root so glob
	// metacharacters in the root path itself stay literal.
	rootFS := os.DirFS(o.cfg.ProjectRoot)

	for _, pattern := range o.cfg.TempPatterns {
		names, err := fs.Glob(rootFS, pattern)
		if err != nil {
			o.logger.Warn("optimizer: invalid temp pattern", "pattern", pattern, "error", err)
			res.Failed = append(res.Failed, CleanFailure{Path: pattern, Error: err.Error()})
			continue
		}
		slices.Sort(names)

		for _, name := range names {
			path := filepath.Join(o.cfg.ProjectRoot, filepath.FromSlash(name))
			if _, dup := seen[path]; dup {
				continue
			}
			seen[path] = struct{}{}

			info, err := os.Lstat(path)
			if err != nil {
				o.recordCleanFailure(&res, path, err)
				continue
			}
			if info.IsDir() {
				continue
			}
			if err := os.Remove(path); err != nil {
				o.recordCleanFailure(&res, path, err)
				continue
			}
			res.Removed = append(res.Removed, path)
			o.logger.Info("temp file removed", "path", path)
		}
	}

	span.SetAttributes(
		attribute.Int("removed", len(res.Removed)),
		attribute.Int("failed", len(res.Failed)),
	)
	return res
}

func (o *Optimizer) recordCleanFailure(res *CleanResult, path string, err error) {
	o.logger.Warn("optimizer: could not remove temp file", "path", path, "error", err)
	res.Failed = append(res.Failed, CleanFailure{Path: path, Error: fmt.Sprint(err)})
}
