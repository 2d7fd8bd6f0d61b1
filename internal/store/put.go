package store

import (
	"context"
	"fmt"
)

// PutConversation stores or replaces a conversation row. A zero timestamp is
// written as NULL.
func (s *Store) PutConversation(ctx context.Context, rec ConversationRecord) error {
	var ts any
	if rec.Dated() {
		ts = FormatTime(rec.Timestamp)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO conversation_context (session_id, timestamp, context_summary)
		VALUES (?, ?, ?)`,
		rec.SessionID, ts, rec.ContextSummary,
	)
	if err != nil {
		return fmt.Errorf("store: put conversation: %w", err)
	}
	return nil
}

// PutCodeContext stores or replaces a code-context row. A zero modification
// time is written as NULL.
func (s *Store) PutCodeContext(ctx context.Context, rec CodeContextRecord) error {
	var mod any
	if rec.Dated() {
		mod = FormatTime(rec.LastModified)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO code_context (file_path, last_modified, complexity_score)
		VALUES (?, ?, ?)`,
		rec.FilePath, mod, rec.ComplexityScore,
	)
	if err != nil {
		return fmt.Errorf("store: put code context: %w", err)
	}
	return nil
}
