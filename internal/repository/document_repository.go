package repository

import (
	"context"
	"encoding/json"
	"errors"

	"chatify-realtime/internal/store"

	"github.com/jackc/pgx/v5"
)

// PostgresDocumentStore keeps documents as JSONB rows. Every primitive is a
// single statement (or one transaction), so concurrent writers from any
// process are safe.
type PostgresDocumentStore struct {
	db DBTX
}

func NewDocumentStore(db DBTX) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

const (
	getDocumentSQL = `SELECT body, version FROM documents WHERE key = $1`

	createDocumentSQL = `
		INSERT INTO documents (key, body, version, updated_at)
		VALUES ($1, $2::jsonb, 1, now())
		ON CONFLICT (key) DO NOTHING`

	setDocumentSQL = `
		INSERT INTO documents (key, body, version, updated_at)
		VALUES ($1, $2::jsonb, 1, now())
		ON CONFLICT (key) DO UPDATE
		SET body = EXCLUDED.body, version = documents.version + 1, updated_at = now()`

	updateDocumentSQL = `
		UPDATE documents
		SET body = body || $2::jsonb, version = version + 1, updated_at = now()
		WHERE key = $1`

	casDocumentSQL = `
		UPDATE documents
		SET body = body || $3::jsonb, version = version + 1, updated_at = now()
		WHERE key = $1 AND version = $2`

	appendDocumentSQL = `
		UPDATE documents
		SET body = jsonb_set(body, ARRAY[$2::text],
				COALESCE(body->($2::text), '[]'::jsonb) || jsonb_build_array($3::jsonb), true),
			version = version + 1,
			updated_at = now()
		WHERE key = $1
		AND NOT EXISTS (
			SELECT 1 FROM jsonb_array_elements(COALESCE(body->($2::text), '[]'::jsonb)) AS e(value)
			WHERE e.value = $3::jsonb
		)`

	existsDocumentSQL = `SELECT EXISTS (SELECT 1 FROM documents WHERE key = $1)`

	deleteDocumentSQL = `DELETE FROM documents WHERE key = $1`
)

func (r *PostgresDocumentStore) Get(ctx context.Context, key string) (*store.Document, error) {
	var body []byte
	var version int64
	err := r.db.QueryRow(ctx, getDocumentSQL, key).Scan(&body, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	doc := &store.Document{Key: key, Version: version, Fields: map[string]json.RawMessage{}}
	if err := json.Unmarshal(body, &doc.Fields); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *PostgresDocumentStore) Create(ctx context.Context, key string, fields store.Fields) error {
	body, err := encodeBody(fields)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, createDocumentSQL, key, body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

func (r *PostgresDocumentStore) Set(ctx context.Context, key string, fields store.Fields) error {
	body, err := encodeBody(fields)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, setDocumentSQL, key, body)
	return err
}

func (r *PostgresDocumentStore) Update(ctx context.Context, key string, fields store.Fields) error {
	body, err := encodeBody(fields)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, updateDocumentSQL, key, body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *PostgresDocumentStore) AppendToArray(ctx context.Context, key, field string, values ...any) error {
	return WithTx(ctx, r.db, func(tx DBTX) error {
		var exists bool
		if err := tx.QueryRow(ctx, existsDocumentSQL, key).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
		for _, v := range values {
			raw, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, appendDocumentSQL, key, field, raw); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresDocumentStore) CompareAndSet(ctx context.Context, key string, version int64, fields store.Fields) error {
	body, err := encodeBody(fields)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, casDocumentSQL, key, version, body)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRow(ctx, existsDocumentSQL, key).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrVersionMismatch
}

func (r *PostgresDocumentStore) Delete(ctx context.Context, key string) error {
	_, err := r.db.Exec(ctx, deleteDocumentSQL, key)
	return err
}

// Close is a no-op; the pool is owned by the caller.
func (r *PostgresDocumentStore) Close() error {
	return nil
}

func encodeBody(fields store.Fields) ([]byte, error) {
	encoded, err := store.EncodeFields(fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(encoded)
}
