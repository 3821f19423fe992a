package store

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/cockroachdb/pebble"
)

const pebbleKeyPrefix = "doc:"

// PebbleStore is an embedded single-node DocumentStore. Writes to one key are
// serialized by a striped lock, which makes AppendToArray and CompareAndSet
// atomic within the process that owns the database directory.
type PebbleStore struct {
	db    *pebble.DB
	locks [64]sync.Mutex
}

// OpenPebble opens (or creates) a pebble database at path. opts may be nil.
func OpenPebble(path string, opts *pebble.Options) (*PebbleStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.locks[h.Sum32()%uint32(len(s.locks))]
}

func (s *PebbleStore) read(key string) (*Document, error) {
	value, closer, err := s.db.Get([]byte(pebbleKeyPrefix + key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	data := make([]byte, len(value))
	copy(data, value)
	return Unmarshal(key, data)
}

func (s *PebbleStore) write(doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	return s.db.Set([]byte(pebbleKeyPrefix+doc.Key), data, pebble.Sync)
}

func (s *PebbleStore) Get(ctx context.Context, key string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read(key)
}

func (s *PebbleStore) Set(ctx context.Context, key string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	var version int64
	if existing, err := s.read(key); err == nil {
		version = existing.Version
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	doc := &Document{Key: key, Version: version}
	if err := Merge(doc, fields); err != nil {
		return err
	}
	return s.write(doc)
}

func (s *PebbleStore) Create(ctx context.Context, key string, fields Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	if _, err := s.read(key); err == nil {
		return ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	doc := &Document{Key: key}
	if err := Merge(doc, fields); err != nil {
		return err
	}
	return s.write(doc)
}

func (s *PebbleStore) Update(ctx context.Context, key string, fields Fields) error {
	return s.modify(ctx, key, func(doc *Document) (bool, error) {
		return true, Merge(doc, fields)
	})
}

func (s *PebbleStore) AppendToArray(ctx context.Context, key, field string, values ...any) error {
	return s.modify(ctx, key, func(doc *Document) (bool, error) {
		return UnionAppend(doc, field, values)
	})
}

func (s *PebbleStore) CompareAndSet(ctx context.Context, key string, version int64, fields Fields) error {
	return s.modify(ctx, key, func(doc *Document) (bool, error) {
		if doc.Version != version {
			return false, ErrVersionMismatch
		}
		return true, Merge(doc, fields)
	})
}

func (s *PebbleStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()
	return s.db.Delete([]byte(pebbleKeyPrefix+key), pebble.Sync)
}

func (s *PebbleStore) modify(ctx context.Context, key string, fn func(*Document) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	doc, err := s.read(key)
	if err != nil {
		return err
	}
	changed, err := fn(doc)
	if err != nil || !changed {
		return err
	}
	return s.write(doc)
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}
