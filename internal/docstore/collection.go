package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNoDocuments  = errors.New("no documents in result")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrEmptyUpdate  = errors.New("update has no operations")
)

const idField = "_id"

type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

type DeleteResult struct {
	DeletedCount int64
}

// Collection is a named set of JSON documents keyed by "_id". Each call is
// atomic on its own; there are no multi-document transactions.
type Collection interface {
	Name() string
	FindOne(ctx context.Context, filter Filter, out any) error
	Find(ctx context.Context, filter Filter) ([]json.RawMessage, error)
	InsertOne(ctx context.Context, id string, doc any) (string, error)
	UpdateOne(ctx context.Context, filter Filter, update Update) (UpdateResult, error)
	UpdateMany(ctx context.Context, filter Filter, update Update) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter Filter) (DeleteResult, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}

type Store interface {
	Collection(name string) Collection
}

// CollectionSpec declares a collection and the field paths whose values must
// be unique across its documents.
type CollectionSpec struct {
	Name   string
	Unique []string
}

// DecodeAll unmarshals every raw document into T, keeping order.
func DecodeAll[T any](docs []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for i, raw := range docs {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("failed to decode document %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// encodeDocument renders doc as a JSON object whose "_id" is id.
func encodeDocument(id string, doc any) (map[string]any, []byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("document must be a JSON object: %w", err)
	}
	if m == nil {
		return nil, nil, errors.New("document must be a JSON object")
	}
	m[idField] = id
	out, err := json.Marshal(m)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return m, out, nil
}

// normalize converts v to the shape encoding/json produces when decoding into
// any, so values compare equal regardless of their Go type.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
