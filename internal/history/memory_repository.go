package history

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for development and tests. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records map[string][]*Record
}

// NewInMemoryRepository creates a new in-memory history repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make(map[string][]*Record),
	}
}

// Create stores a copy of r.
func (m *InMemoryRepository) Create(_ context.Context, r *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cpy := *r
	m.records[r.UserID] = append(m.records[r.UserID], &cpy)
	return nil
}

// List returns copies of a user's records, newest first.
func (m *InMemoryRepository) List(_ context.Context, userID string, opts ListOptions) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.records[userID]
	out := make([]*Record, 0, len(stored))
	for _, r := range stored {
		cpy := *r
		out = append(out, &cpy)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
