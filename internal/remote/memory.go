package remote

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It backs tests and can inject failures.
type Memory struct {
	mu   sync.Mutex
	cols map[string]map[string]Document
	seq  map[string]int64 // insertion order per document

	next int64

	// Fail, when set, is consulted before every operation; a non-nil return
	// aborts the operation with that error.
	Fail func(op, collection string) error
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cols: make(map[string]map[string]Document),
		seq:  make(map[string]int64),
	}
}

func (m *Memory) check(op, collection string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, collection)
}

func (m *Memory) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("list", collection); err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(m.cols[collection]))
	for _, d := range m.cols[collection] {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		return m.seq[collection+"/"+docs[i].ID] < m.seq[collection+"/"+docs[j].ID]
	})
	return docs, nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("get", collection); err != nil {
		return Document{}, err
	}
	d, ok := m.cols[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d, nil
}

func (m *Memory) Create(_ context.Context, collection string, data json.RawMessage) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("create", collection); err != nil {
		return Document{}, err
	}
	return m.write(collection, uuid.NewString(), data), nil
}

func (m *Memory) Put(_ context.Context, collection, id string, data json.RawMessage) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("put", collection); err != nil {
		return Document{}, err
	}
	return m.write(collection, id, data), nil
}

func (m *Memory) Update(_ context.Context, collection, id string, data json.RawMessage, ifVersion int64) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("update", collection); err != nil {
		return Document{}, err
	}
	cur, ok := m.cols[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	if ifVersion > 0 && cur.Version != ifVersion {
		return Document{}, ErrConflict
	}
	return m.write(collection, id, data), nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("delete", collection); err != nil {
		return err
	}
	if _, ok := m.cols[collection][id]; !ok {
		return ErrNotFound
	}
	delete(m.cols[collection], id)
	delete(m.seq, collection+"/"+id)
	return nil
}

// write stores data under id with a bumped version. Caller holds mu.
func (m *Memory) write(collection, id string, data json.RawMessage) Document {
	col, ok := m.cols[collection]
	if !ok {
		col = make(map[string]Document)
		m.cols[collection] = col
	}
	cur, exists := col[id]
	if !exists {
		m.next++
		m.seq[collection+"/"+id] = m.next
	}
	d := Document{ID: id, Version: cur.Version + 1, Data: append(json.RawMessage(nil), data...)}
	col[id] = d
	return d
}
