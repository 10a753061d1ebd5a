package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Documents implementation used by tests and local
// runs. Listing order without an explicit order is insertion order.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
	now         func() time.Time
}

type memoryCollection struct {
	order []string
	docs  map[string]Document
}

// NewMemory creates an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]*memoryCollection),
		now:         time.Now,
	}
}

// WithClock replaces the clock used for system timestamps.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) collection(name string) *memoryCollection {
	c, ok := m.collections[name]
	if !ok {
		c = &memoryCollection{docs: make(map[string]Document)}
		m.collections[name] = c
	}
	return c
}

// Create stores a new document.
func (m *Memory) Create(ctx context.Context, collection, id string, fields map[string]any) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == UniqueID || id == "" {
		id = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c := m.collection(collection)
	if _, exists := c.docs[id]; exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrConflict, collection, id)
	}

	now := FormatTime(m.now())
	doc := cloneDocument(fields)
	doc[FieldID] = id
	doc[FieldCreatedAt] = now
	doc[FieldUpdatedAt] = now

	c.docs[id] = doc
	c.order = append(c.order, id)
	return cloneDocument(doc), nil
}

// Get returns a copy of the document.
func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	return cloneDocument(doc), nil
}

// List filters, orders and windows the collection.
func (m *Memory) List(ctx context.Context, collection string, queries ...Query) (DocumentList, error) {
	if err := ctx.Err(); err != nil {
		return DocumentList{}, err
	}
	p, err := compile(queries)
	if err != nil {
		return DocumentList{}, err
	}

	m.mu.RLock()
	var docs []Document
	if c, ok := m.collections[collection]; ok {
		docs = make([]Document, 0, len(c.order))
		for _, id := range c.order {
			docs = append(docs, cloneDocument(c.docs[id]))
		}
	}
	m.mu.RUnlock()

	return p.apply(docs)
}

// Update merges fields into an existing document.
func (m *Memory) Update(ctx context.Context, collection, id string, fields map[string]any) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	doc, ok := c.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}

	for k, v := range cloneDocument(fields) {
		if k == FieldID || k == FieldCreatedAt {
			continue
		}
		doc[k] = v
	}
	doc[FieldUpdatedAt] = FormatTime(m.now())
	return cloneDocument(doc), nil
}

// Delete removes the document.
func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	if _, ok := c.docs[id]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	return nil
}

// cloneDocument copies the top level and any slices so callers cannot
// mutate stored state.
func cloneDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		switch val := v.(type) {
		case []string:
			out[k] = slices.Clone(val)
		case []any:
			out[k] = slices.Clone(val)
		default:
			out[k] = v
		}
	}
	return out
}
