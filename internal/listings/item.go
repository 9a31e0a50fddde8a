// Package listings tracks marketplace items and their sold state.
//
// The escrow flow only touches items through MarkItemAsSold, which runs from
// a retrying background queue after payment clears. Listing creation and
// search live in the main app; this service owns the sold transition so it
// agrees with the escrow record.
package listings

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound    = errors.New("listings: item not found")
	ErrAlreadySold = errors.New("listings: item already sold in another transaction")
)

// ItemStatus represents an item's availability.
type ItemStatus string

const (
	ItemAvailable ItemStatus = "available"
	ItemReserved  ItemStatus = "reserved" // Pending escrow created, payment outstanding
	ItemSold      ItemStatus = "sold"
)

// Item is a marketplace listing.
type Item struct {
	ID          string     `json:"id"`
	SellerID    string     `json:"sellerId"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Price       int64      `json:"price"` // Minor units
	Category    string     `json:"category,omitempty"`
	Status      ItemStatus `json:"status"`

	// Set when the item sells, tying it to the escrow record.
	SoldTo            string     `json:"soldTo,omitempty"`
	SoldTransactionID string     `json:"soldTransactionId,omitempty"`
	SoldAt            *time.Time `json:"soldAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy.
func (i *Item) Clone() *Item {
	cp := *i
	if i.SoldAt != nil {
		at := *i.SoldAt
		cp.SoldAt = &at
	}
	return &cp
}

// Store persists items.
type Store interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, error)
	// MarkSold flips an available or reserved item to sold, recording the
	// buyer and transaction. Selling an item already sold in the same
	// transaction is a no-op; sold in a different transaction returns
	// ErrAlreadySold.
	MarkSold(ctx context.Context, id, transactionID, buyerID string, at time.Time) error
}
