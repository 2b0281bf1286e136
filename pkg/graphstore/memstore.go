package graphstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MrWong99/parley/pkg/caption"
	"github.com/MrWong99/parley/pkg/convgraph"
)

var _ Store = (*MemStore)(nil)

type memRecord struct {
	info     Info
	chunks   []caption.Chunk
	speakers []string
	edges    []convgraph.Edge
}

// MemStore is an in-memory [Store]. The zero value is ready to use.
type MemStore struct {
	mu      sync.RWMutex
	records map[string]*memRecord
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// SaveTranscript implements [Store].
func (m *MemStore) SaveTranscript(_ context.Context, t Transcript) (string, error) {
	if err := Prepare(&t, time.Now()); err != nil {
		return "", err
	}

	rec := &memRecord{
		info: Info{
			ID:        t.ID,
			Name:      t.Name,
			CreatedAt: t.CreatedAt,
			Chunks:    len(t.Chunks),
			Summary:   t.Graph.Summary(),
		},
		chunks:   slices.Clone(t.Chunks),
		speakers: t.Graph.Nodes(),
		edges:    t.Graph.Edges(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = make(map[string]*memRecord)
	}
	m.records[t.ID] = rec
	return t.ID, nil
}

func (m *MemStore) get(id string) (*memRecord, error) {
	id, err := ValidateID(id)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// LoadGraph implements [Store].
func (m *MemStore) LoadGraph(_ context.Context, id string) (*convgraph.Graph, error) {
	rec, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return Rebuild(rec.speakers, rec.edges)
}

// LoadChunks implements [Store].
func (m *MemStore) LoadChunks(_ context.Context, id string) ([]caption.Chunk, error) {
	rec, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return slices.Clone(rec.chunks), nil
}

// ListTranscripts implements [Store].
func (m *MemStore) ListTranscripts(_ context.Context) ([]Info, error) {
	m.mu.RLock()
	out := make([]Info, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.info)
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b Info) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// DeleteTranscript implements [Store].
func (m *MemStore) DeleteTranscript(_ context.Context, id string) error {
	id, err := ValidateID(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}
