package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Tx exposes the row-level operations used by a pruning pass. It is only
// valid inside the callback given to Store.Update.
type Tx struct {
	tx *sql.Tx
}

// Conversations returns every addressable conversation row.
func (t *Tx) Conversations(ctx context.Context) ([]ConversationRecord, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT session_id, timestamp, context_summary
		FROM conversation_context`)
	if err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []ConversationRecord
	for rows.Next() {
		rec, ok, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		if ok {
			recs = append(recs, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list conversations rows: %w", err)
	}
	return recs, nil
}

// CodeContexts returns every addressable code-context row.
func (t *Tx) CodeContexts(ctx context.Context) ([]CodeContextRecord, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT file_path, last_modified, complexity_score
		FROM code_context`)
	if err != nil {
		return nil, fmt.Errorf("store: list code contexts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []CodeContextRecord
	for rows.Next() {
		rec, ok, err := scanCodeContext(rows)
		if err != nil {
			return nil, err
		}
		if ok {
			recs = append(recs, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list code contexts rows: %w", err)
	}
	return recs, nil
}

// DeleteConversations removes the given sessions and returns the number of
// rows deleted.
func (t *Tx) DeleteConversations(ctx context.Context, sessionIDs []string) (int, error) {
	return t.deleteKeys(ctx, "DELETE FROM conversation_context WHERE session_id = ?", sessionIDs)
}

// DeleteCodeContexts removes the given file paths and returns the number of
// rows deleted.
func (t *Tx) DeleteCodeContexts(ctx context.Context, filePaths []string) (int, error) {
	return t.deleteKeys(ctx, "DELETE FROM code_context WHERE file_path = ?", filePaths)
}

// SetSummary replaces the context summary of a session.
func (t *Tx) SetSummary(ctx context.Context, sessionID, summary string) error {
	if _, err := t.tx.ExecContext(ctx,
		"UPDATE conversation_context SET context_summary = ? WHERE session_id = ?",
		summary, sessionID,
	); err != nil {
		return fmt.Errorf("store: set summary: %w", err)
	}
	return nil
}

func (t *Tx) deleteKeys(ctx context.Context, query string, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	stmt, err := t.tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("store: prepare delete: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var deleted int
	for _, key := range keys {
		res, err := stmt.ExecContext(ctx, key)
		if err != nil {
			return deleted, fmt.Errorf("store: delete %q: %w", key, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, fmt.Errorf("store: rows affected: %w", err)
		}
		deleted += int(n)
	}
	return deleted, nil
}
