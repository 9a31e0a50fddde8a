package escrow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yrdly/platform/internal/idgen"
	"github.com/yrdly/platform/internal/metrics"
	"github.com/yrdly/platform/internal/pagination"
	"github.com/yrdly/platform/internal/traces"
)

// EventEmitter receives transaction lifecycle events for realtime streaming.
type EventEmitter interface {
	TransactionCreated(tx *Transaction)
	StatusChanged(tx *Transaction, previous Status)
}

// CreateRequest contains the parameters for creating an escrow transaction.
type CreateRequest struct {
	ItemID        string          `json:"itemId" binding:"required"`
	BuyerID       string          `json:"buyerId" binding:"required"`
	SellerID      string          `json:"sellerId" binding:"required"`
	Amount        int64           `json:"amount" binding:"required"`
	PaymentMethod PaymentMethod   `json:"paymentMethod" binding:"required"`
	Delivery      DeliveryDetails `json:"deliveryDetails" binding:"required"`
}

// StatusUpdate carries caller-supplied fields merged into a transition.
// Caller fields take precedence over computed ones, except milestone
// timestamps, which are only ever set once.
type StatusUpdate struct {
	PaymentReference string
	PaidAt           *time.Time
	DisputeReason    string
}

// Service enforces the escrow transaction lifecycle and the financial
// amount invariants.
type Service struct {
	store  Store
	events EventEmitter
	locks  sync.Map // per-transaction ID mutexes; serializes transitions
}

// NewService creates a new escrow service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// WithEvents adds a realtime event emitter.
func (s *Service) WithEvents(e EventEmitter) *Service {
	s.events = e
	return s
}

// txLock returns the mutex for a transaction ID.
func (s *Service) txLock(id string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Create validates the request, computes the commission split, and persists
// a new pending transaction.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.Create",
		traces.ItemID(req.ItemID), traces.AmountMinor(req.Amount))
	defer span.End()

	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.BuyerID == req.SellerID {
		return nil, ErrSelfTrade
	}
	if !req.PaymentMethod.Valid() {
		return nil, fmt.Errorf("unknown payment method %q", req.PaymentMethod)
	}
	if !req.Delivery.Option.Valid() {
		return nil, fmt.Errorf("unknown delivery option %q", req.Delivery.Option)
	}

	commission := CommissionFor(req.Amount)
	now := time.Now().UTC()
	tx := &Transaction{
		ID:            idgen.WithPrefix("txn_"),
		ItemID:        req.ItemID,
		BuyerID:       req.BuyerID,
		SellerID:      req.SellerID,
		Amount:        req.Amount,
		Commission:    commission,
		TotalAmount:   req.Amount, // Buyer pays the listed price; fee comes from the seller side
		SellerAmount:  req.Amount - commission,
		Status:        StatusPending,
		PaymentMethod: req.PaymentMethod,
		Delivery:      req.Delivery,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	metrics.TransactionsCreatedTotal.Inc()
	metrics.CommissionMinorUnitsTotal.Add(float64(commission))

	if s.events != nil {
		s.events.TransactionCreated(tx)
	}

	return tx, nil
}

// UpdateStatus applies a validated status transition. Illegal successors are
// rejected with ErrInvalidTransition; a concurrent writer that changed the
// status first surfaces as ErrConflict.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status, update *StatusUpdate) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "escrow.UpdateStatus", traces.TransactionID(id))
	defer span.End()

	if !next.Valid() {
		return nil, fmt.Errorf("unknown status %q: %w", next, ErrInvalidTransition)
	}

	mu := s.txLock(id)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(tx.Status, next) {
		metrics.TransitionConflictsTotal.WithLabelValues("invalid_transition").Inc()
		return nil, fmt.Errorf("%s -> %s: %w", tx.Status, next, ErrInvalidTransition)
	}

	previous := tx.Status
	now := time.Now().UTC()
	tx.Status = next
	tx.UpdatedAt = now

	// First time this milestone is reached, stamp it. A caller-supplied
	// PaidAt (e.g. the gateway's charge time) wins over the wall clock,
	// but an already-set milestone is never rewritten.
	if slot := tx.milestoneFor(next); slot != nil && *slot == nil {
		at := now
		if next == StatusPaid && update != nil && update.PaidAt != nil {
			at = update.PaidAt.UTC()
		}
		*slot = &at
	}

	if update != nil {
		if update.PaymentReference != "" {
			tx.PaymentReference = update.PaymentReference
		}
		if update.DisputeReason != "" {
			tx.DisputeReason = update.DisputeReason
		}
	}

	if err := s.store.UpdateConditional(ctx, tx, previous); err != nil {
		if errors.Is(err, ErrConflict) {
			metrics.TransitionConflictsTotal.WithLabelValues("concurrent_update").Inc()
		}
		return nil, err
	}

	metrics.StatusTransitionsTotal.WithLabelValues(string(next)).Inc()

	if s.events != nil {
		s.events.StatusChanged(tx, previous)
	}

	return tx, nil
}

// Get returns a transaction by ID.
func (s *Service) Get(ctx context.Context, id string) (*Transaction, error) {
	return s.store.Get(ctx, id)
}

// ListByBuyer returns a buyer's transactions, newest first.
func (s *Service) ListByBuyer(ctx context.Context, buyerID string, limit int, cursor *pagination.Cursor) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListByBuyer(ctx, buyerID, limit, cursor)
}

// ListBySeller returns a seller's transactions, newest first.
func (s *Service) ListBySeller(ctx context.Context, sellerID string, limit int, cursor *pagination.Cursor) ([]*Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListBySeller(ctx, sellerID, limit, cursor)
}

// UpdateDeliveryDetails changes the hand-off arrangement. Once the item has
// shipped (or the transaction is terminal) the details are locked.
func (s *Service) UpdateDeliveryDetails(ctx context.Context, id string, d DeliveryDetails) (*Transaction, error) {
	if !d.Option.Valid() {
		return nil, fmt.Errorf("unknown delivery option %q", d.Option)
	}

	mu := s.txLock(id)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch tx.Status {
	case StatusPending, StatusPaid, StatusDisputed:
		// Editable until the item is moving.
	default:
		return nil, ErrDeliveryLocked
	}

	tx.Delivery = d
	tx.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateConditional(ctx, tx, tx.Status); err != nil {
		return nil, err
	}
	return tx, nil
}

// Dispute moves a transaction into disputed, recording the reason.
func (s *Service) Dispute(ctx context.Context, id, reason string) (*Transaction, error) {
	return s.UpdateStatus(ctx, id, StatusDisputed, &StatusUpdate{DisputeReason: reason})
}

// ResolveDispute records the resolution note and timestamp. It does NOT
// change the status: the caller must separately transition the transaction
// to completed or cancelled. The original dispute reason is preserved.
func (s *Service) ResolveDispute(ctx context.Context, id, note string) (*Transaction, error) {
	mu := s.txLock(id)
	mu.Lock()
	defer mu.Unlock()

	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if tx.Status != StatusDisputed {
		return nil, ErrNotDisputed
	}
	if tx.DisputeResolvedAt != nil {
		return nil, ErrAlreadyResolved
	}

	now := time.Now().UTC()
	tx.DisputeResolutionNote = note
	tx.DisputeResolvedAt = &now
	tx.UpdatedAt = now

	if err := s.store.UpdateConditional(ctx, tx, StatusDisputed); err != nil {
		return nil, err
	}
	return tx, nil
}

// Stats returns aggregate escrow activity. The aggregation runs in the
// storage layer; results may be slightly stale under concurrent writes.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.store.Stats(ctx)
}
