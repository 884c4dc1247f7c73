package storage

import (
	"context"
	"sync"

	"github.com/example/restaurant-matching/internal/models"
)

// HistoryStore archives completed-session summaries. It is a write-only sink
// behind the repository seam; the live registry never reads from it.
type HistoryStore interface {
	SaveSummary(ctx context.Context, sum models.SessionSummary) error
}

type MemoryStore struct {
	mu        sync.RWMutex
	summaries map[string]models.SessionSummary
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{summaries: make(map[string]models.SessionSummary)}
}

func (m *MemoryStore) SaveSummary(_ context.Context, sum models.SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[sum.SessionID] = sum
	return nil
}

func (m *MemoryStore) Get(id string) (models.SessionSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.summaries[id]
	return s, ok
}
