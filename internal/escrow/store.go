package escrow

import (
	"context"

	"github.com/yrdly/platform/internal/pagination"
)

// Store persists escrow transactions.
//
// UpdateConditional is the concurrency primitive: it writes the full record
// only when the stored status still equals expected, returning ErrConflict
// otherwise. Milestone timestamps are additionally guarded set-if-null at
// the storage layer so a stale writer can never rewind one.
type Store interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	UpdateConditional(ctx context.Context, tx *Transaction, expected Status) error
	ListByBuyer(ctx context.Context, buyerID string, limit int, cursor *pagination.Cursor) ([]*Transaction, error)
	ListBySeller(ctx context.Context, sellerID string, limit int, cursor *pagination.Cursor) ([]*Transaction, error)
	Stats(ctx context.Context) (*Stats, error)
}
