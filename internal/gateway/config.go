package gateway

import "time"

// Config holds HTTP status server configuration.
type Config struct {
	// Listen is the host:port to bind.
	Listen string

	// Token enables POST /api/optimize for "Authorization: Bearer <token>"
	// callers. Empty leaves the endpoint unmounted.
	Token string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// defaults fills zero values with sensible defaults.
func (c *Config) defaults() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:9464"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		// Covers a synchronous optimize run.
		c.WriteTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}
