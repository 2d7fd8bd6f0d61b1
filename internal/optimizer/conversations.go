package optimizer

import (
	"context"
	"slices"
	"strings"

	"github.com/flemzord/ctxopt/internal/store"
	"go.opentelemetry.io/otel/attribute"
)

// ConversationResult summarizes a conversation pruning pass.
type ConversationResult struct {
	Removed         int `json:"removed"`
	RemovedExpired  int `json:"removed_expired"`
	RemovedOverflow int `json:"removed_overflow"`
	Truncated       int `json:"truncated"`
	Remaining       int `json:"remaining"`
}

// PruneConversations deletes expired conversations, keeps the
// MaxConversations newest of the rest and truncates long summaries, all in
// one transaction. Rows without a usable timestamp survive the age check
// and rank as oldest for the count check.
func (o *Optimizer) PruneConversations(ctx context.Context) (res ConversationResult, err error) {
	ctx, span := startSpan(ctx, "PruneConversations",
		attribute.Int("max_conversations", o.cfg.MaxConversations),
		attribute.Int("max_summary_length", o.cfg.MaxSummaryLength),
	)
	defer func() {
		span.SetAttributes(
			attribute.Int("removed", res.Removed),
			attribute.Int("truncated", res.Truncated),
		)
		endSpan(span, err)
	}()

	s, err := o.openStore()
	if err != nil {
		return ConversationResult{}, err
	}
	defer o.closeStore(s)

	horizon := o.cfg.AgeHorizon(o.now())

	err = s.Update(ctx, func(tx *store.Tx) error {
		convs, err := tx.Conversations(ctx)
		if err != nil {
			return err
		}

		var expired []string
		kept := convs[:0]
		for _, c := range convs {
			if c.Dated() && c.Timestamp.Before(horizon) {
				expired = append(expired, c.SessionID)
				continue
			}
			kept = append(kept, c)
		}
		if res.RemovedExpired, err = tx.DeleteConversations(ctx, expired); err != nil {
			return err
		}

		slices.SortFunc(kept, newestFirst)
		var overflow []string
		if len(kept) > o.cfg.MaxConversations {
			for _, c := range kept[o.cfg.MaxConversations:] {
				overflow = append(overflow, c.SessionID)
			}
			kept = kept[:o.cfg.MaxConversations]
		}
		if res.RemovedOverflow, err = tx.DeleteConversations(ctx, overflow); err != nil {
			return err
		}

		for _, c := range kept {
			summary, changed := TruncateSummary(c.ContextSummary, o.cfg.MaxSummaryLength)
			if !changed {
				continue
			}
			if err := tx.SetSummary(ctx, c.SessionID, summary); err != nil {
				return err
			}
			res.Truncated++
		}

		res.Remaining = len(kept)
		return nil
	})
	if err != nil {
		return ConversationResult{}, err
	}

	res.Removed = res.RemovedExpired + res.RemovedOverflow
	o.logger.Info("conversations optimized",
		"removed", res.Removed,
		"expired", res.RemovedExpired,
		"overflow", res.RemovedOverflow,
		"truncated", res.Truncated,
		"remaining", res.Remaining,
	)
	return res, nil
}

// newestFirst orders by timestamp descending, undated last, then session ID.
func newestFirst(a, b store.ConversationRecord) int {
	if a.Dated() != b.Dated() {
		if a.Dated() {
			return -1
		}
		return 1
	}
	if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
		return c
	}
	return strings.Compare(a.SessionID, b.SessionID)
}
