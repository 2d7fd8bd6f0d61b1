package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"

	"github.com/flemzord/ctxopt/internal/cron"
)

// Validate checks the structural validity of a Config and reports every
// problem at once.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: %q)", cfg.Version, CurrentVersion))
	}

	errs = append(errs, validateRetention(cfg.Retention)...)

	if cfg.Store.BusyTimeout < 0 {
		errs = append(errs, fmt.Errorf("config: store.busy_timeout must be non-negative, got %d", cfg.Store.BusyTimeout))
	}

	for i, p := range cfg.Clean.Patterns {
		if p == "" {
			errs = append(errs, fmt.Errorf("config: clean.patterns[%d]: empty pattern", i))
			continue
		}
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("config: clean.patterns[%d]: %q: %w", i, p, err))
		}
		if filepath.Base(p) != p {
			errs = append(errs, fmt.Errorf("config: clean.patterns[%d]: %q must not contain a path separator", i, p))
		}
	}

	if cfg.Schedule.Cron != "" {
		if err := cron.ValidateSchedule(cfg.Schedule.Cron); err != nil {
			errs = append(errs, fmt.Errorf("config: schedule.cron: %w", err))
		}
	}

	if cfg.Gateway.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Gateway.Listen); err != nil {
			errs = append(errs, fmt.Errorf("config: gateway.listen %q: %w", cfg.Gateway.Listen, err))
		}
	}

	if cfg.Tracing.Endpoint != "" {
		if _, _, err := net.SplitHostPort(cfg.Tracing.Endpoint); err != nil {
			errs = append(errs, fmt.Errorf("config: tracing.endpoint %q: %w", cfg.Tracing.Endpoint, err))
		}
	}

	if cfg.Log.Level != "" {
		if _, err := ParseLevel(cfg.Log.Level); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func validateRetention(r RetentionConfig) []error {
	var errs []error
	fields := []struct {
		name  string
		value int
	}{
		{"max_conversations", r.MaxConversations},
		{"max_context_age_days", r.MaxContextAgeDays},
		{"max_summary_length", r.MaxSummaryLength},
		{"max_file_contexts", r.MaxFileContexts},
	}
	for _, f := range fields {
		if f.value < 0 {
			errs = append(errs, fmt.Errorf("config: retention.%s must be positive, got %d", f.name, f.value))
		}
	}
	return errs
}
