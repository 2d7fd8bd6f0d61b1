// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for ctxopt.
package config

import (
	"github.com/flemzord/ctxopt/internal/cron"
	"github.com/flemzord/ctxopt/internal/optimizer"
)

// CurrentVersion is the only supported config format version.
const CurrentVersion = "1"

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// ProjectRoot is the directory holding .context/. Relative paths are
	// resolved against the working directory. Defaults to ".".
	ProjectRoot string `yaml:"project_root,omitempty"`

	Store     StoreConfig     `yaml:"store"`
	Retention RetentionConfig `yaml:"retention"`
	Backup    BackupConfig    `yaml:"backup"`
	Clean     CleanConfig     `yaml:"clean"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Gateway   GatewayConfig   `yaml:"gateway,omitempty"`
	Metrics   MetricsConfig   `yaml:"metrics,omitempty"`
	Tracing   TracingConfig   `yaml:"tracing,omitempty"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig locates the context database.
type StoreConfig struct {
	// Path defaults to {project_root}/.context/context.db. Relative paths are
	// resolved against the project root.
	Path string `yaml:"path,omitempty"`

	// BusyTimeout is the milliseconds to wait on a busy lock. Defaults to 5000.
	BusyTimeout int `yaml:"busy_timeout,omitempty"`
}

// RetentionConfig holds the pruning thresholds.
type RetentionConfig struct {
	MaxConversations  int `yaml:"max_conversations"`
	MaxContextAgeDays int `yaml:"max_context_age_days"`
	MaxSummaryLength  int `yaml:"max_summary_length"`
	MaxFileContexts   int `yaml:"max_file_contexts"`
}

// BackupConfig controls where snapshots go.
type BackupConfig struct {
	// Dir defaults to {project_root}/.context/backups.
	Dir string `yaml:"dir,omitempty"`
}

// CleanConfig lists the ephemeral file patterns removed from the project root.
type CleanConfig struct {
	Patterns []string `yaml:"patterns,omitempty"`
}

// ScheduleConfig drives the schedule daemon.
type ScheduleConfig struct {
	// Cron is a 5-field cron expression. Defaults to "0 3 * * *".
	Cron string `yaml:"cron"`

	// RunOnStart triggers one optimization as soon as the daemon starts.
	RunOnStart bool `yaml:"run_on_start,omitempty"`
}

// GatewayConfig configures the daemon's HTTP status server.
type GatewayConfig struct {
	// Listen is a host:port address. Empty disables the server.
	Listen string `yaml:"listen,omitempty"`

	// Token enables POST /api/optimize for bearer-authenticated callers.
	Token string `yaml:"token,omitempty"`
}

// MetricsConfig configures Prometheus output.
type MetricsConfig struct {
	// Textfile, when set, receives the metrics after every optimize run in
	// the node_exporter textfile collector format.
	Textfile string `yaml:"textfile,omitempty"`
}

// TracingConfig configures OTLP trace export.
type TracingConfig struct {
	// Endpoint is an OTLP/HTTP host:port. Empty disables tracing.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure,omitempty"`
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

const (
	defaultCron     = cron.DefaultOptimizeSchedule
	defaultLogLevel = "info"
)

// Default returns a configuration with every default filled in.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields. Zero retention values take the
// optimizer defaults.
func (c *Config) ApplyDefaults() {
	if c.Version == "" {
		c.Version = CurrentVersion
	}
	if c.ProjectRoot == "" {
		c.ProjectRoot = "."
	}
	if c.Retention.MaxConversations == 0 {
		c.Retention.MaxConversations = optimizer.DefaultMaxConversations
	}
	if c.Retention.MaxContextAgeDays == 0 {
		c.Retention.MaxContextAgeDays = optimizer.DefaultMaxContextAgeDays
	}
	if c.Retention.MaxSummaryLength == 0 {
		c.Retention.MaxSummaryLength = optimizer.DefaultMaxSummaryLength
	}
	if c.Retention.MaxFileContexts == 0 {
		c.Retention.MaxFileContexts = optimizer.DefaultMaxFileContexts
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = defaultCron
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
}
