package reload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/flemzord/ctxopt/internal/config"
)

// ApplyFunc installs a freshly loaded, validated configuration.
type ApplyFunc func(ctx context.Context, cfg *config.Config) error

// Handler reloads the configuration file and hands it to an ApplyFunc.
// A config that fails to load or validate is never applied.
type Handler struct {
	apply  ApplyFunc
	logger *slog.Logger
}

// NewHandler creates a reload handler.
func NewHandler(apply ApplyFunc, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{apply: apply, logger: logger}
}

// HandleReload loads configPath, validates it, and applies it. An empty
// path reloads the built-in defaults.
func (h *Handler) HandleReload(ctx context.Context, configPath string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return h.HandleReloadFromConfig(ctx, cfg)
}

// HandleReloadFromConfig applies a pre-loaded config. The caller is
// responsible for calling config.Validate first.
func (h *Handler) HandleReloadFromConfig(ctx context.Context, cfg *config.Config) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before reload: %w", err)
	}
	if err := h.apply(ctx, cfg); err != nil {
		return fmt.Errorf("applying config: %w", err)
	}

	h.logger.Info("configuration reloaded successfully")
	return nil
}
