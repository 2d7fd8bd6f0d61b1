// Package optimizer keeps a project's context store within its retention
// limits. It inspects the store, snapshots it, prunes conversation and
// code-context rows, removes ephemeral session files and compacts the file.
//
// Failures never propagate out of a run: each step returns a result or an
// error value that Run logs and records in the Report.
package optimizer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/flemzord/ctxopt/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrStoreNotFound is returned by steps that need an existing store.
var ErrStoreNotFound = errors.New("optimizer: context store not found")

var tracer = otel.Tracer("github.com/flemzord/ctxopt/internal/optimizer")

// Optimizer runs the retention steps against one store.
type Optimizer struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes an Optimizer.
type Option func(*Optimizer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Optimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides time.Now, used for age horizons and backup names.
func WithClock(now func() time.Time) Option {
	return func(o *Optimizer) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Optimizer. cfg is completed with defaults.
func New(cfg Config, opts ...Option) *Optimizer {
	o := &Optimizer{
		cfg:    cfg.WithDefaults(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Config returns the effective configuration.
func (o *Optimizer) Config() Config {
	return o.cfg
}

// StoreExists reports whether the context store is present.
func (o *Optimizer) StoreExists() bool {
	return store.Exists(o.cfg.StorePath)
}

// openStore opens the configured store, mapping a missing file to
// ErrStoreNotFound.
func (o *Optimizer) openStore() (*store.Store, error) {
	s, err := store.Open(o.cfg.StorePath, store.Options{BusyTimeout: o.cfg.BusyTimeout})
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrStoreNotFound
	}
	return s, err
}

func (o *Optimizer) closeStore(s *store.Store) {
	if err := s.Close(); err != nil {
		o.logger.Warn("optimizer: close store failed", "path", s.Path(), "error", err)
	}
}

// startSpan opens a span named after the step.
func startSpan(ctx context.Context, step string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "optimizer."+step, trace.WithAttributes(attrs...))
}

// endSpan records err on span, if any, and ends it.
func endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrStoreNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
