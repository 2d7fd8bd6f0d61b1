package store

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements mirror the tables written by the context indexers.
// Writers may add columns; the store only reads the ones listed here.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS conversation_context (
		session_id      TEXT PRIMARY KEY,
		timestamp       TEXT,
		context_summary TEXT
	)`,

	`CREATE INDEX IF NOT EXISTS idx_conversation_timestamp ON conversation_context(timestamp)`,

	`CREATE TABLE IF NOT EXISTS code_context (
		file_path        TEXT PRIMARY KEY,
		last_modified    TEXT,
		complexity_score REAL
	)`,
}

// migrate creates the tables when missing. All DDL uses IF NOT EXISTS, so it
// is safe on a database an indexer already populated.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w\nstatement: %s", err, stmt)
		}
	}
	return nil
}
