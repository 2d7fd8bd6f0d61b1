// Package gateway provides the daemon's HTTP status server: health, run
// status, Prometheus metrics, and an authenticated manual trigger. It binds
// to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Params wires the gateway to the rest of the daemon. Only Tracker is
// required.
type Params struct {
	Tracker *Tracker
	Logger  *slog.Logger

	// Metrics serves GET /metrics when set.
	Metrics http.Handler

	// Trigger runs the optimizer now. It backs POST /api/optimize.
	Trigger func(ctx context.Context) error

	// NextRun reports the next scheduled run for GET /status.
	NextRun func() time.Time

	// StorePath is echoed by GET /status.
	StorePath string
}

// Gateway is the HTTP status server.
type Gateway struct {
	config    Config
	logger    *slog.Logger
	server    *http.Server
	listener  net.Listener
	tracker   *Tracker
	metrics   http.Handler
	trigger   func(ctx context.Context) error
	nextRun   func() time.Time
	storePath string
	startedAt time.Time
}

// New creates a gateway. It does not bind until Start.
func New(cfg Config, p Params) *Gateway {
	cfg.defaults()
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracker := p.Tracker
	if tracker == nil {
		tracker = &Tracker{}
	}
	return &Gateway{
		config:    cfg,
		logger:    logger,
		tracker:   tracker,
		metrics:   p.Metrics,
		trigger:   p.Trigger,
		nextRun:   p.NextRun,
		storePath: p.StorePath,
		startedAt: time.Now(),
	}
}

// Handler returns the routed handler without binding a socket.
func (g *Gateway) Handler() http.Handler {
	return g.buildRouter()
}

// Start binds the listen address and serves in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.config.Listen,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Listen)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}
	g.listener = ln

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (g *Gateway) Addr() string {
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr().String()
}

// Stop shuts the server down gracefully with the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
