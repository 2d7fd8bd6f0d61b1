package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/flemzord/ctxopt/internal/optimizer"
)

// Optimizer builds the optimizer configuration. A non-empty projectRoot
// overrides the configured one. Relative store and backup paths are
// resolved against the project root.
func (c *Config) Optimizer(projectRoot string) optimizer.Config {
	root := c.ProjectRoot
	if projectRoot != "" {
		root = projectRoot
	}
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}

	var patterns []string
	if len(c.Clean.Patterns) > 0 {
		patterns = append(patterns, c.Clean.Patterns...)
	}

	return optimizer.Config{
		ProjectRoot:       root,
		StorePath:         underRoot(root, c.Store.Path),
		BackupDir:         underRoot(root, c.Backup.Dir),
		MaxConversations:  c.Retention.MaxConversations,
		MaxContextAgeDays: c.Retention.MaxContextAgeDays,
		MaxSummaryLength:  c.Retention.MaxSummaryLength,
		MaxFileContexts:   c.Retention.MaxFileContexts,
		TempPatterns:      patterns,
		BusyTimeout:       c.Store.BusyTimeout,
	}.WithDefaults()
}

func underRoot(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown log level %q (want debug, info, warn or error)", name)
	}
}
