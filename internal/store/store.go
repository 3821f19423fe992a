// Package store defines the document store the room log is persisted in, and
// the encoding shared by its key-value backends.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	chatify_errors "chatify-realtime/pkg/errors"
)

var (
	// ErrNotFound is returned when no document exists at a key.
	ErrNotFound = errors.New("document not found")
	// ErrVersionMismatch is returned by CompareAndSet when the document changed.
	ErrVersionMismatch = errors.New("document version mismatch")
	// ErrAlreadyExists is returned by Create when the key is taken.
	ErrAlreadyExists = errors.New("document already exists")
)

// Fields is a partial document: top-level field name to any JSON-encodable value.
type Fields map[string]any

// Document is a stored record with its raw fields and a version that
// increases on every write.
type Document struct {
	Key     string                     `json:"-"`
	Fields  map[string]json.RawMessage `json:"fields"`
	Version int64                      `json:"v"`
}

// Decode unmarshals the document's fields into v.
func (d *Document) Decode(v any) error {
	raw, err := json.Marshal(d.Fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Field unmarshals a single field into v. A missing field leaves v untouched.
func (d *Document) Field(name string, v any) error {
	raw, ok := d.Fields[name]
	if !ok {
		return nil
	}
	return json.Unmarshal(raw, v)
}

// DocumentStore is a key-addressed JSON document store.
type DocumentStore interface {
	// Get returns the document at key or ErrNotFound.
	Get(ctx context.Context, key string) (*Document, error)
	// Create writes a new document, or fails with ErrAlreadyExists.
	Create(ctx context.Context, key string, fields Fields) error
	// Set creates or replaces the document at key.
	Set(ctx context.Context, key string, fields Fields) error
	// Update merges fields into an existing document.
	Update(ctx context.Context, key string, fields Fields) error
	// AppendToArray atomically union-appends values to an array field of an
	// existing document. Values already present are not added again.
	AppendToArray(ctx context.Context, key, field string, values ...any) error
	// CompareAndSet merges fields only if the document is still at version.
	CompareAndSet(ctx context.Context, key string, version int64, fields Fields) error
	// Delete removes the document. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Unavailable marks a backend failure as transient for callers of the log.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrVersionMismatch) || errors.Is(err, ErrAlreadyExists) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, chatify_errors.ErrStoreUnavailable, err)
}

// EncodeFields marshals every value of fields.
func EncodeFields(fields Fields) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}

// Marshal encodes a document for backends that store opaque bytes.
func Marshal(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}

// Unmarshal decodes bytes written by Marshal.
func Unmarshal(key string, data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", key, err)
	}
	if doc.Fields == nil {
		doc.Fields = map[string]json.RawMessage{}
	}
	doc.Key = key
	return &doc, nil
}

// Merge applies fields on top of doc and bumps its version.
func Merge(doc *Document, fields Fields) error {
	encoded, err := EncodeFields(fields)
	if err != nil {
		return err
	}
	if doc.Fields == nil {
		doc.Fields = map[string]json.RawMessage{}
	}
	for k, v := range encoded {
		doc.Fields[k] = v
	}
	doc.Version++
	return nil
}

// UnionAppend appends values to the array field of doc, skipping values that
// are already present. It reports whether the document changed.
func UnionAppend(doc *Document, field string, values []any) (bool, error) {
	var current []json.RawMessage
	if raw, ok := doc.Fields[field]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &current); err != nil {
			return false, fmt.Errorf("field %s is not an array: %w", field, err)
		}
	}

	seen := make([][]byte, 0, len(current))
	for _, item := range current {
		c, err := canonical(item)
		if err != nil {
			return false, err
		}
		seen = append(seen, c)
	}

	changed := false
	for _, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return false, err
		}
		c, err := canonical(raw)
		if err != nil {
			return false, err
		}
		if containsBytes(seen, c) {
			continue
		}
		seen = append(seen, c)
		current = append(current, raw)
		changed = true
	}
	if !changed {
		return false, nil
	}

	encoded, err := json.Marshal(current)
	if err != nil {
		return false, err
	}
	if doc.Fields == nil {
		doc.Fields = map[string]json.RawMessage{}
	}
	doc.Fields[field] = encoded
	doc.Version++
	return true, nil
}

// canonical re-encodes JSON so that equal values compare byte-equal
// (object keys sorted, insignificant whitespace removed).
func canonical(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func containsBytes(list [][]byte, b []byte) bool {
	for _, item := range list {
		if bytes.Equal(item, b) {
			return true
		}
	}
	return false
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
