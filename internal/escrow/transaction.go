// Package escrow implements the marketplace escrow transaction lifecycle.
//
// Flow:
//  1. Buyer checks out an item → transaction created in pending
//  2. Payment gateway confirms the charge → paid
//  3. Seller hands off or ships → shipped → delivered
//  4. Buyer confirms receipt → completed, seller is owed amount - commission
//  5. Either party may dispute or cancel any non-terminal transaction
//
// Amounts are integer minor currency units. The platform commission is
// fixed at 2% of the item price, deducted from the seller's proceeds,
// and frozen at creation time.
package escrow

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrConflict          = errors.New("transaction modified concurrently, retry with fresh state")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrSelfTrade         = errors.New("buyer and seller cannot be the same user")
	ErrNotDisputed       = errors.New("transaction is not disputed")
	ErrAlreadyResolved   = errors.New("dispute already resolved")
	ErrDeliveryLocked    = errors.New("delivery details can no longer be changed")
)

// Status represents the state of an escrow transaction.
type Status string

const (
	StatusPending   Status = "pending"   // Created, awaiting payment
	StatusPaid      Status = "paid"      // Gateway confirmed the charge
	StatusShipped   Status = "shipped"   // Seller handed the item to delivery
	StatusDelivered Status = "delivered" // Buyer has the item
	StatusCompleted Status = "completed" // Buyer confirmed, funds due to seller
	StatusDisputed  Status = "disputed"  // A party raised a dispute
	StatusCancelled Status = "cancelled" // Abandoned before completion
)

// transitions is the legal successor set for each status. Disputed and
// cancelled are reachable from every non-terminal state; disputed re-enters
// the graph only through completed or cancelled after explicit resolution.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusDisputed, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusDisputed, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusDisputed, StatusCancelled},
	StatusDelivered: {StatusCompleted, StatusDisputed, StatusCancelled},
	StatusDisputed:  {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanTransition reports whether from → to is a legal transition.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentMethod is how the buyer pays.
type PaymentMethod string

const (
	MethodCard        PaymentMethod = "card"
	MethodBank        PaymentMethod = "bank_transfer"
	MethodMobileMoney PaymentMethod = "mobile_money"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodBank, MethodMobileMoney:
		return true
	}
	return false
}

// DeliveryOption is how the item changes hands.
type DeliveryOption string

const (
	DeliveryFaceToFace     DeliveryOption = "face_to_face"
	DeliverySellerDelivery DeliveryOption = "seller_delivery"
)

// Valid reports whether o is a known delivery option.
func (o DeliveryOption) Valid() bool {
	return o == DeliveryFaceToFace || o == DeliverySellerDelivery
}

// DeliveryDetails describes the agreed hand-off.
type DeliveryDetails struct {
	Option DeliveryOption `json:"option" binding:"required"`
	Notes  string         `json:"notes,omitempty"`
}

// CommissionRateBasisPoints is the platform fee: 2% of the item price.
// Changing this never affects existing records; commission is frozen at
// creation.
const CommissionRateBasisPoints = 200

// CommissionFor computes the platform commission for an amount in minor
// units, rounding half up to the nearest minor unit.
func CommissionFor(amount int64) int64 {
	return (amount*CommissionRateBasisPoints + 5000) / 10000
}

// Transaction is an escrow record mediating a marketplace sale. It is
// never deleted; financial records are retained permanently for audit.
type Transaction struct {
	ID       string `json:"id"`
	ItemID   string `json:"itemId"`
	BuyerID  string `json:"buyerId"`
	SellerID string `json:"sellerId"`

	// Amount invariant, for the lifetime of the record:
	// SellerAmount + Commission == Amount == TotalAmount.
	Amount       int64 `json:"amount"`       // Item price, minor units
	Commission   int64 `json:"commission"`   // 2% of Amount, seller-side
	TotalAmount  int64 `json:"totalAmount"`  // What the buyer is charged
	SellerAmount int64 `json:"sellerAmount"` // Amount - Commission

	Status           Status          `json:"status"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	PaymentReference string          `json:"paymentReference,omitempty"`
	Delivery         DeliveryDetails `json:"deliveryDetails"`

	// Milestone timestamps: each set exactly once, the first time the
	// corresponding status is reached. Never overwritten.
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	ShippedAt   *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	DisputeReason         string     `json:"disputeReason,omitempty"`
	DisputeResolutionNote string     `json:"disputeResolutionNote,omitempty"`
	DisputeResolvedAt     *time.Time `json:"disputeResolvedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// milestoneFor returns a pointer to the milestone timestamp field for a
// status, or nil when the status has none.
func (t *Transaction) milestoneFor(s Status) **time.Time {
	switch s {
	case StatusPaid:
		return &t.PaidAt
	case StatusShipped:
		return &t.ShippedAt
	case StatusDelivered:
		return &t.DeliveredAt
	case StatusCompleted:
		return &t.CompletedAt
	}
	return nil
}

// Clone returns a deep copy.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	cp.PaidAt = cloneTime(t.PaidAt)
	cp.ShippedAt = cloneTime(t.ShippedAt)
	cp.DeliveredAt = cloneTime(t.DeliveredAt)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	cp.DisputeResolvedAt = cloneTime(t.DisputeResolvedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Stats aggregates escrow activity across all transactions.
type Stats struct {
	TotalTransactions int64 `json:"totalTransactions"`
	TotalVolume       int64 `json:"totalVolume"`     // Sum of Amount, minor units
	TotalCommission   int64 `json:"totalCommission"` // Sum of Commission, minor units
	PendingCount      int64 `json:"pendingCount"`
	CompletedCount    int64 `json:"completedCount"`
	DisputedCount     int64 `json:"disputedCount"`
}
