package redis

import (
	"context"
	"errors"
	"fmt"

	"chatify-realtime/internal/store"

	goredis "github.com/redis/go-redis/v9"
)

// Document keys are namespaced so the store can share a Redis database with
// pub/sub and other tenants.
const documentKeyPrefix = "doc:"

const defaultMaxTxRetries = 16

// DocumentStore keeps each document as one JSON value and implements the
// atomic primitives with WATCH/MULTI optimistic transactions.
type DocumentStore struct {
	client     *goredis.Client
	maxRetries int
}

// NewDocumentStore creates a Redis backed store.DocumentStore.
func NewDocumentStore(client *goredis.Client) *DocumentStore {
	return &DocumentStore{client: client, maxRetries: defaultMaxTxRetries}
}

func (s *DocumentStore) redisKey(key string) string {
	return documentKeyPrefix + key
}

func (s *DocumentStore) Get(ctx context.Context, key string) (*store.Document, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err == goredis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return store.Unmarshal(key, data)
}

func (s *DocumentStore) Create(ctx context.Context, key string, fields store.Fields) error {
	return s.transact(ctx, key, true, func(doc *store.Document) (bool, error) {
		if doc.Version != 0 {
			return false, store.ErrAlreadyExists
		}
		return true, store.Merge(doc, fields)
	})
}

func (s *DocumentStore) Set(ctx context.Context, key string, fields store.Fields) error {
	return s.transact(ctx, key, true, func(doc *store.Document) (bool, error) {
		doc.Fields = nil
		return true, store.Merge(doc, fields)
	})
}

func (s *DocumentStore) Update(ctx context.Context, key string, fields store.Fields) error {
	return s.transact(ctx, key, false, func(doc *store.Document) (bool, error) {
		return true, store.Merge(doc, fields)
	})
}

func (s *DocumentStore) AppendToArray(ctx context.Context, key, field string, values ...any) error {
	return s.transact(ctx, key, false, func(doc *store.Document) (bool, error) {
		return store.UnionAppend(doc, field, values)
	})
}

func (s *DocumentStore) CompareAndSet(ctx context.Context, key string, version int64, fields store.Fields) error {
	return s.transact(ctx, key, false, func(doc *store.Document) (bool, error) {
		if doc.Version != version {
			return false, store.ErrVersionMismatch
		}
		return true, store.Merge(doc, fields)
	})
}

func (s *DocumentStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.redisKey(key)).Err()
}

// Close is a no-op; the client is owned by the caller.
func (s *DocumentStore) Close() error {
	return nil
}

// transact runs fn against the current document inside a WATCH on its key and
// retries when another writer commits first.
func (s *DocumentStore) transact(ctx context.Context, key string, create bool, fn func(*store.Document) (bool, error)) error {
	rkey := s.redisKey(key)
	txf := func(tx *goredis.Tx) error {
		var doc *store.Document
		data, err := tx.Get(ctx, rkey).Bytes()
		switch {
		case err == goredis.Nil && create:
			doc = &store.Document{Key: key}
		case err == goredis.Nil:
			return store.ErrNotFound
		case err != nil:
			return err
		default:
			if doc, err = store.Unmarshal(key, data); err != nil {
				return err
			}
		}

		changed, err := fn(doc)
		if err != nil || !changed {
			return err
		}
		encoded, err := store.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, rkey, encoded, 0)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, rkey)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("document %s: too many concurrent writers", key)
}
