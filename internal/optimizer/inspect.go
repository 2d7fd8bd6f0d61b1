package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// Stats is a point-in-time view of the store.
type Stats struct {
	Exists        bool      `json:"exists"`
	Conversations int       `json:"conversations"`
	CodeContexts  int       `json:"code_contexts"`
	SizeBytes     int64     `json:"size_bytes"`
	Oldest        time.Time `json:"oldest_conversation,omitzero"`
	Newest        time.Time `json:"newest_conversation,omitzero"`
}

// SizeMB returns the file size in mebibytes.
func (s Stats) SizeMB() float64 {
	return float64(s.SizeBytes) / (1024 * 1024)
}

// Analyze counts rows and measures the store file. A missing store yields
// zero Stats and a nil error.
func (o *Optimizer) Analyze(ctx context.Context) (stats Stats, err error) {
	ctx, span := startSpan(ctx, "Analyze")
	defer func() {
		span.SetAttributes(
			attribute.Int("conversations", stats.Conversations),
			attribute.Int("code_contexts", stats.CodeContexts),
			attribute.Int64("size_bytes", stats.SizeBytes),
		)
		endSpan(span, err)
	}()

	info, err := os.Stat(o.cfg.StorePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Stats{}, nil
		}
		return Stats{}, fmt.Errorf("optimizer: stat store: %w", err)
	}

	s, err := o.openStore()
	if err != nil {
		if errors.Is(err, ErrStoreNotFound) {
			return Stats{}, nil
		}
		return Stats{}, err
	}
	defer o.closeStore(s)

	counts, err := s.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}
	oldest, newest, err := s.ConversationRange(ctx)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Exists:        true,
		Conversations: counts.Conversations,
		CodeContexts:  counts.CodeContexts,
		SizeBytes:     info.Size(),
		Oldest:        oldest,
		Newest:        newest,
	}, nil
}
