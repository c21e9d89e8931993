package store

import (
	"context"
	"strings"
	"sync"

	"github.com/dusk-indust/polyscan/internal/model"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu         sync.RWMutex
	components map[string]model.Component
	rels       []StoredRelationship
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		components: make(map[string]model.Component),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// AddComponent stores a component keyed by its id, replacing any
// previous version.
func (m *MemStore) AddComponent(_ context.Context, c model.Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[c.ID] = c
	return nil
}

// AddRelationship appends an edge, replacing an existing edge with the
// same id so re-indexing a file stays idempotent.
func (m *MemStore) AddRelationship(_ context.Context, rel StoredRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rels {
		if m.rels[i].ID == rel.ID {
			m.rels[i] = rel
			return nil
		}
	}
	m.rels = append(m.rels, rel)
	return nil
}

// GetComponent returns the component for the given id, or nil if not found.
func (m *MemStore) GetComponent(_ context.Context, id string) (*model.Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.components[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// QueryComponents returns components whose name contains nameQuery
// (case-insensitive), up to limit results. A limit <= 0 returns all
// matches.
func (m *MemStore) QueryComponents(_ context.Context, nameQuery string, limit int) ([]model.Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lower := strings.ToLower(nameQuery)
	var results []model.Component
	for _, c := range m.components {
		if strings.Contains(strings.ToLower(c.Name), lower) {
			results = append(results, c)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
	}
	return results, nil
}

// GetRelationshipsFor returns edges touching componentID as target
// (in), source (out), or either (both).
func (m *MemStore) GetRelationshipsFor(_ context.Context, componentID string, dir Direction) ([]StoredRelationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []StoredRelationship
	for _, rel := range m.rels {
		in := rel.TargetID == componentID
		outbound := rel.SourceID == componentID
		switch dir {
		case DirectionIn:
			if !in {
				continue
			}
		case DirectionOut:
			if !outbound {
				continue
			}
		default:
			if !in && !outbound {
				continue
			}
		}
		out = append(out, rel)
	}
	return out, nil
}

// Stats returns counts of stored components and relationships.
func (m *MemStore) Stats(_ context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := 0
	for _, c := range m.components {
		if c.Type == model.ComponentFile {
			files++
		}
	}
	return &GraphStats{
		FileCount:         files,
		ComponentCount:    len(m.components),
		RelationshipCount: len(m.rels),
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}
