package escrow

import (
	"context"
	"sort"
	"sync"

	"github.com/yrdly/platform/internal/pagination"
)

// MemoryStore is an in-memory transaction store for demo/development mode.
type MemoryStore struct {
	mu  sync.RWMutex
	txs map[string]*Transaction
}

// NewMemoryStore creates a new in-memory transaction store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{txs: make(map[string]*Transaction)}
}

func (m *MemoryStore) Create(ctx context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.txs[tx.ID] = tx.Clone()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return tx.Clone(), nil
}

func (m *MemoryStore) UpdateConditional(ctx context.Context, tx *Transaction, expected Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.txs[tx.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != expected {
		return ErrConflict
	}

	cp := tx.Clone()
	// Milestones are set-if-null at the storage layer: whatever the stored
	// record already has wins over the incoming write.
	for _, s := range []Status{StatusPaid, StatusShipped, StatusDelivered, StatusCompleted} {
		if have := stored.milestoneFor(s); have != nil && *have != nil {
			*cp.milestoneFor(s) = cloneTime(*have)
		}
	}
	if stored.DisputeResolvedAt != nil {
		cp.DisputeResolvedAt = cloneTime(stored.DisputeResolvedAt)
	}
	m.txs[tx.ID] = cp
	return nil
}

func (m *MemoryStore) ListByBuyer(ctx context.Context, buyerID string, limit int, cursor *pagination.Cursor) ([]*Transaction, error) {
	return m.list(limit, cursor, func(t *Transaction) bool { return t.BuyerID == buyerID })
}

func (m *MemoryStore) ListBySeller(ctx context.Context, sellerID string, limit int, cursor *pagination.Cursor) ([]*Transaction, error) {
	return m.list(limit, cursor, func(t *Transaction) bool { return t.SellerID == sellerID })
}

// list returns up to limit+1 matches newest first, resuming after cursor.
func (m *MemoryStore) list(limit int, cursor *pagination.Cursor, match func(*Transaction) bool) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*Transaction
	for _, t := range m.txs {
		if match(t) {
			result = append(result, t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if cursor != nil {
		idx := 0
		for idx < len(result) {
			t := result[idx]
			if t.CreatedAt.Before(cursor.CreatedAt) ||
				(t.CreatedAt.Equal(cursor.CreatedAt) && t.ID < cursor.ID) {
				break
			}
			idx++
		}
		result = result[idx:]
	}

	if len(result) > limit+1 {
		result = result[:limit+1]
	}
	return result, nil
}

func (m *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &Stats{}
	for _, t := range m.txs {
		stats.TotalTransactions++
		stats.TotalVolume += t.Amount
		stats.TotalCommission += t.Commission
		switch t.Status {
		case StatusPending:
			stats.PendingCount++
		case StatusCompleted:
			stats.CompletedCount++
		case StatusDisputed:
			stats.DisputedCount++
		}
	}
	return stats, nil
}

// Compile-time assertion that MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
