package store

import (
	"context"
	"errors"
	"fmt"

	chatify_errors "chatify-realtime/pkg/errors"
)

// DefaultCASAttempts bounds optimistic retries of UpdateWithRetry.
const DefaultCASAttempts = 8

// AppendOrCreate union-appends values to field, creating the document when it
// does not exist yet.
func AppendOrCreate(ctx context.Context, s DocumentStore, key, field string, values ...any) error {
	for {
		err := s.AppendToArray(ctx, key, field, values...)
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		err = s.Create(ctx, key, Fields{field: values})
		if !errors.Is(err, ErrAlreadyExists) {
			return err
		}
	}
}

// UpdateWithRetry reads the document at key, lets fn compute the fields to
// merge and writes them guarded by the version that was read. fn returning nil
// fields leaves the document untouched. A version mismatch restarts the cycle
// up to attempts times, after which ErrConflict is returned.
func UpdateWithRetry(ctx context.Context, s DocumentStore, key string, attempts int, fn func(*Document) (Fields, error)) error {
	if attempts <= 0 {
		attempts = DefaultCASAttempts
	}
	for i := 0; i < attempts; i++ {
		doc, err := s.Get(ctx, key)
		if err != nil {
			return err
		}
		fields, err := fn(doc)
		if err != nil || fields == nil {
			return err
		}
		err = s.CompareAndSet(ctx, key, doc.Version, fields)
		if errors.Is(err, ErrVersionMismatch) {
			continue
		}
		return err
	}
	return fmt.Errorf("%s: %w", key, chatify_errors.ErrConflict)
}

// RemoveFromIDs drops id from the string array field of the document at key.
// A missing document is treated as already empty.
func RemoveFromIDs(ctx context.Context, s DocumentStore, key, field, id string) error {
	err := UpdateWithRetry(ctx, s, key, 0, func(doc *Document) (Fields, error) {
		var ids []string
		if err := doc.Field(field, &ids); err != nil {
			return nil, err
		}
		kept := make([]string, 0, len(ids))
		for _, v := range ids {
			if v != id {
				kept = append(kept, v)
			}
		}
		if len(kept) == len(ids) {
			return nil, nil
		}
		return Fields{field: kept}, nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
