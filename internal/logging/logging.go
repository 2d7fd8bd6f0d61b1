// Package logging builds the text slog.Logger used by every command, with
// configured secrets and well-known API key formats masked before output.
package logging

import (
	"io"
	"log/slog"

	"github.com/flemzord/ctxopt/internal/config"
)

// Options configures New.
type Options struct {
	// Level is a level name accepted by config.ParseLevel.
	Level string

	// Secrets are literal values that must never reach the output.
	Secrets []string
}

// New returns a text logger writing to w.
func New(w io.Writer, opts Options) (*slog.Logger, error) {
	level, err := config.ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	inner := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(newRedactingHandler(inner, newRedactor(opts.Secrets...))), nil
}

// Secrets lists the configured values that must be masked in logs.
func Secrets(cfg *config.Config) []string {
	var out []string
	if cfg.Gateway.Token != "" {
		out = append(out, cfg.Gateway.Token)
	}
	return out
}
