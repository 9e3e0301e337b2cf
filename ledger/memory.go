package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/card-rewards/catalog"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type MemoryStore struct {
	mu          sync.RWMutex
	usage       map[string][]Usage // by holder
	idempotency map[string]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		usage:       make(map[string][]Usage),
		idempotency: make(map[string]bool),
	}
}

func (m *MemoryStore) AppendUsage(_ context.Context, u Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.IdempotencyKey != "" && m.idempotency[u.IdempotencyKey] {
		return ErrDuplicateIdempotencyKey
	}

	entries := m.usage[u.HolderID]
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].SpentAt.After(u.SpentAt)
	})
	entries = append(entries, Usage{})
	copy(entries[i+1:], entries[i:])
	entries[i] = u
	m.usage[u.HolderID] = entries

	if u.IdempotencyKey != "" {
		m.idempotency[u.IdempotencyKey] = true
	}
	return nil
}

func (m *MemoryStore) LoadUsage(_ context.Context, holderID string, cardID catalog.CardID) ([]Usage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Usage
	for _, u := range m.usage[holderID] {
		if cardID == "" || u.CardID == cardID {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *MemoryStore) UsageExists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}
