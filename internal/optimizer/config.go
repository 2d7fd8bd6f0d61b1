package optimizer

import (
	"path/filepath"
	"time"
)

// Retention defaults.
const (
	DefaultMaxConversations  = 10
	DefaultMaxContextAgeDays = 30
	DefaultMaxSummaryLength  = 500
	DefaultMaxFileContexts   = 50
)

// TruncationMarker is appended to summaries cut to MaxSummaryLength.
const TruncationMarker = "... (truncated)"

// DefaultTempPatterns are the ephemeral files removed from the project root.
var DefaultTempPatterns = []string{
	"ai_context_*.json",
	"session_handoff_*.json",
	"temp_*.log",
	".ai_session_*",
	".ai_changes_*.log",
}

// Config controls a single optimizer. Zero values take the defaults above;
// paths are derived from ProjectRoot when empty.
type Config struct {
	// ProjectRoot anchors relative code-context paths and the temp-file scan.
	ProjectRoot string

	// StorePath defaults to {ProjectRoot}/.context/context.db.
	StorePath string

	// BackupDir defaults to {ProjectRoot}/.context/backups.
	BackupDir string

	MaxConversations  int
	MaxContextAgeDays int
	MaxSummaryLength  int
	MaxFileContexts   int

	// TempPatterns are glob patterns relative to ProjectRoot.
	TempPatterns []string

	// BusyTimeout is forwarded to the store, in milliseconds.
	BusyTimeout int
}

// WithDefaults returns a copy of c with every unset field filled in.
func (c Config) WithDefaults() Config {
	if c.ProjectRoot == "" {
		c.ProjectRoot = "."
	}
	if c.StorePath == "" {
		c.StorePath = filepath.Join(c.ProjectRoot, ".context", "context.db")
	}
	if c.BackupDir == "" {
		c.BackupDir = filepath.Join(c.ProjectRoot, ".context", "backups")
	}
	if c.MaxConversations <= 0 {
		c.MaxConversations = DefaultMaxConversations
	}
	if c.MaxContextAgeDays <= 0 {
		c.MaxContextAgeDays = DefaultMaxContextAgeDays
	}
	if c.MaxSummaryLength <= 0 {
		c.MaxSummaryLength = DefaultMaxSummaryLength
	}
	if c.MaxFileContexts <= 0 {
		c.MaxFileContexts = DefaultMaxFileContexts
	}
	if c.TempPatterns == nil {
		c.TempPatterns = append([]string(nil), DefaultTempPatterns...)
	}
	return c
}

// AgeHorizon returns the instant before which records are expired.
func (c Config) AgeHorizon(now time.Time) time.Time {
	return now.AddDate(0, 0, -c.MaxContextAgeDays)
}
