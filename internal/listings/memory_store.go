package listings

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory item store for demo/development mode.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Item
}

// NewMemoryStore creates a new in-memory item store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]*Item)}
}

func (m *MemoryStore) Create(ctx context.Context, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[item.ID] = item.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return item.Clone(), nil
}

func (m *MemoryStore) MarkSold(ctx context.Context, id, transactionID, buyerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}

	if item.Status == ItemSold {
		if item.SoldTransactionID == transactionID {
			return nil
		}
		return ErrAlreadySold
	}

	item.Status = ItemSold
	item.SoldTo = buyerID
	item.SoldTransactionID = transactionID
	soldAt := at
	item.SoldAt = &soldAt
	item.UpdatedAt = at
	return nil
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
