package repository

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		key        TEXT PRIMARY KEY,
		body       JSONB NOT NULL DEFAULT '{}'::jsonb,
		version    BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS documents_key_prefix_idx ON documents (key text_pattern_ops);`,
}

var dropSchema = []string{
	`DROP TABLE IF EXISTS documents;`,
}

// InitSchema creates the document table used by the Postgres store.
func InitSchema(ctx context.Context, db DBTX) error {
	return WithTx(ctx, db, func(tx DBTX) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}

// DropSchema removes every table created by InitSchema.
func DropSchema(ctx context.Context, db DBTX) error {
	return WithTx(ctx, db, func(tx DBTX) error {
		for _, stmt := range dropSchema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to drop schema: %w", err)
			}
		}
		return nil
	})
}
