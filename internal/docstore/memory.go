package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// MemoryStore keeps collections in process memory. Documents are returned in
// insertion order.
type MemoryStore struct {
	mu          sync.Mutex
	specs       map[string]CollectionSpec
	collections map[string]*memoryCollection
}

func NewMemoryStore(specs ...CollectionSpec) *MemoryStore {
	s := &MemoryStore{
		specs:       make(map[string]CollectionSpec, len(specs)),
		collections: make(map[string]*memoryCollection),
	}
	for _, spec := range specs {
		s.specs[spec.Name] = spec
	}
	return s
}

func (s *MemoryStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c
	}
	c := &memoryCollection{
		name: name,
		docs: make(map[string][]byte),
	}
	for _, path := range s.specs[name].Unique {
		segments, err := splitPath(path)
		if err != nil {
			continue
		}
		c.unique = append(c.unique, segments)
	}
	s.collections[name] = c
	return c
}

type memoryCollection struct {
	name   string
	unique [][]string

	mu    sync.RWMutex
	order []string
	docs  map[string][]byte
}

type compiledPredicate struct {
	kind     predicateKind
	segments []string
	value    any
}

type compiledOperation struct {
	kind     operationKind
	segments []string
	value    any
}

func (c *memoryCollection) Name() string {
	return c.name
}

func (c *memoryCollection) FindOne(ctx context.Context, filter Filter, out any) error {
	docs, err := c.find(ctx, filter, 1)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return ErrNoDocuments
	}
	if err := json.Unmarshal(docs[0], out); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

func (c *memoryCollection) Find(ctx context.Context, filter Filter) ([]json.RawMessage, error) {
	return c.find(ctx, filter, 0)
}

func (c *memoryCollection) find(ctx context.Context, filter Filter, limit int) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	preds, err := compileMemoryFilter(filter)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]json.RawMessage, 0)
	for _, id := range c.order {
		raw := c.docs[id]
		doc, err := decodeMap(raw)
		if err != nil {
			return nil, err
		}
		if !matchesAll(doc, preds) {
			continue
		}
		out = append(out, append(json.RawMessage(nil), raw...))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (c *memoryCollection) InsertOne(ctx context.Context, id string, doc any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New("document id is required")
	}
	m, raw, err := encodeDocument(id, doc)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; exists {
		return "", fmt.Errorf("%w: %s=%s", ErrDuplicateKey, idField, id)
	}
	if err := c.checkUnique(id, m, nil); err != nil {
		return "", err
	}
	c.docs[id] = raw
	c.order = append(c.order, id)
	return id, nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter Filter, update Update) (UpdateResult, error) {
	return c.update(ctx, filter, update, 1)
}

func (c *memoryCollection) UpdateMany(ctx context.Context, filter Filter, update Update) (UpdateResult, error) {
	return c.update(ctx, filter, update, 0)
}

func (c *memoryCollection) update(ctx context.Context, filter Filter, update Update, limit int) (UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return UpdateResult{}, err
	}
	if update.IsEmpty() {
		return UpdateResult{}, ErrEmptyUpdate
	}
	preds, err := compileMemoryFilter(filter)
	if err != nil {
		return UpdateResult{}, err
	}
	ops, err := compileMemoryUpdate(update)
	if err != nil {
		return UpdateResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var result UpdateResult
	pending := make(map[string][]byte)
	for _, id := range c.order {
		raw := c.docs[id]
		doc, err := decodeMap(raw)
		if err != nil {
			return UpdateResult{}, err
		}
		if !matchesAll(doc, preds) {
			continue
		}
		result.MatchedCount++

		if err := applyOperations(doc, ops); err != nil {
			return UpdateResult{}, err
		}
		next, err := json.Marshal(doc)
		if err != nil {
			return UpdateResult{}, fmt.Errorf("failed to encode document: %w", err)
		}
		current, err := canonical(raw)
		if err != nil {
			return UpdateResult{}, err
		}
		if !bytes.Equal(current, next) {
			if err := c.checkUnique(id, doc, pending); err != nil {
				return UpdateResult{}, err
			}
			pending[id] = next
			result.ModifiedCount++
		}
		if limit > 0 && int(result.MatchedCount) == limit {
			break
		}
	}

	for id, raw := range pending {
		c.docs[id] = raw
	}
	return result, nil
}

func (c *memoryCollection) DeleteOne(ctx context.Context, filter Filter) (DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return DeleteResult{}, err
	}
	preds, err := compileMemoryFilter(filter)
	if err != nil {
		return DeleteResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, id := range c.order {
		doc, err := decodeMap(c.docs[id])
		if err != nil {
			return DeleteResult{}, err
		}
		if !matchesAll(doc, preds) {
			continue
		}
		delete(c.docs, id)
		c.order = append(c.order[:i:i], c.order[i+1:]...)
		return DeleteResult{DeletedCount: 1}, nil
	}
	return DeleteResult{}, nil
}

func (c *memoryCollection) Count(ctx context.Context, filter Filter) (int64, error) {
	docs, err := c.find(ctx, filter, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

// checkUnique compares doc with every other document, reading pending writes
// of the same call in place of the stored version. It must be called with
// c.mu held.
func (c *memoryCollection) checkUnique(id string, doc map[string]any, pending map[string][]byte) error {
	for _, segments := range c.unique {
		value, ok := lookup(doc, segments)
		if !ok || value == nil {
			continue
		}
		for _, otherID := range c.order {
			if otherID == id {
				continue
			}
			raw, ok := pending[otherID]
			if !ok {
				raw = c.docs[otherID]
			}
			other, err := decodeMap(raw)
			if err != nil {
				return err
			}
			if v, ok := lookup(other, segments); ok && reflect.DeepEqual(v, value) {
				return fmt.Errorf("%w: %s=%v", ErrDuplicateKey, joinPath(segments), value)
			}
		}
	}
	return nil
}

func compileMemoryFilter(f Filter) ([]compiledPredicate, error) {
	out := make([]compiledPredicate, 0, len(f.predicates))
	for _, p := range f.predicates {
		segments, err := splitPath(p.path)
		if err != nil {
			return nil, err
		}
		value, err := normalize(p.value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter value for %s: %w", p.path, err)
		}
		out = append(out, compiledPredicate{kind: p.kind, segments: segments, value: value})
	}
	return out, nil
}

func compileMemoryUpdate(u Update) ([]compiledOperation, error) {
	out := make([]compiledOperation, 0, len(u.ops))
	for _, op := range u.ops {
		segments, err := splitPath(op.path)
		if err != nil {
			return nil, err
		}
		value, err := normalize(op.value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode update value for %s: %w", op.path, err)
		}
		out = append(out, compiledOperation{kind: op.kind, segments: segments, value: value})
	}
	return out, nil
}

func matchesAll(doc map[string]any, preds []compiledPredicate) bool {
	for _, p := range preds {
		v, ok := lookup(doc, p.segments)
		if !ok {
			return false
		}
		switch p.kind {
		case predicateEq:
			if !reflect.DeepEqual(v, p.value) {
				return false
			}
		case predicateContains:
			arr, isArr := v.([]any)
			if !isArr || indexOf(arr, p.value) < 0 {
				return false
			}
		}
	}
	return true
}

func applyOperations(doc map[string]any, ops []compiledOperation) error {
	for _, op := range ops {
		switch op.kind {
		case opSet:
			if err := setPath(doc, op.segments, op.value); err != nil {
				return err
			}
		case opUnset:
			parent, ok := parentOf(doc, op.segments)
			if ok {
				delete(parent, op.segments[len(op.segments)-1])
			}
		case opAddToSet:
			current, ok := lookup(doc, op.segments)
			var arr []any
			if ok && current != nil {
				existing, isArr := current.([]any)
				if !isArr {
					return fmt.Errorf("cannot add to %s: field is not an array", joinPath(op.segments))
				}
				arr = existing
			}
			if indexOf(arr, op.value) >= 0 {
				continue
			}
			next := make([]any, 0, len(arr)+1)
			next = append(append(next, arr...), op.value)
			if err := setPath(doc, op.segments, next); err != nil {
				return err
			}
		case opPull:
			current, ok := lookup(doc, op.segments)
			arr, isArr := current.([]any)
			if !ok || !isArr {
				continue
			}
			kept := make([]any, 0, len(arr))
			for _, e := range arr {
				if !reflect.DeepEqual(e, op.value) {
					kept = append(kept, e)
				}
			}
			if err := setPath(doc, op.segments, kept); err != nil {
				return err
			}
		}
	}
	return nil
}

func lookup(doc map[string]any, segments []string) (any, bool) {
	var current any = doc
	for _, s := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func parentOf(doc map[string]any, segments []string) (map[string]any, bool) {
	if len(segments) == 1 {
		return doc, true
	}
	v, ok := lookup(doc, segments[:len(segments)-1])
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

func setPath(doc map[string]any, segments []string, value any) error {
	current := doc
	for i, s := range segments[:len(segments)-1] {
		next, ok := current[s]
		if !ok || next == nil {
			child := make(map[string]any)
			current[s] = child
			current = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %s: %s is not an object", joinPath(segments), joinPath(segments[:i+1]))
		}
		current = child
	}
	current[segments[len(segments)-1]] = value
	return nil
}

func indexOf(arr []any, value any) int {
	for i, e := range arr {
		if reflect.DeepEqual(e, value) {
			return i
		}
	}
	return -1
}

func decodeMap(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode stored document: %w", err)
	}
	return m, nil
}

func canonical(raw []byte) ([]byte, error) {
	m, err := decodeMap(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

func joinPath(segments []string) string {
	return strings.Join(segments, ".")
}
