package listings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yrdly/platform/internal/idgen"
)

// CreateRequest contains the parameters for listing an item.
type CreateRequest struct {
	SellerID    string `json:"sellerId" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Price       int64  `json:"price" binding:"required"`
	Category    string `json:"category"`
}

// Service manages marketplace items.
type Service struct {
	store Store
}

// NewService creates a new listings service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Create lists a new item.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Item, error) {
	if req.Price <= 0 {
		return nil, fmt.Errorf("price must be positive")
	}

	now := time.Now().UTC()
	item := &Item{
		ID:          idgen.WithPrefix("item_"),
		SellerID:    req.SellerID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Status:      ItemAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return item, nil
}

// Get returns an item by ID.
func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	return s.store.Get(ctx, id)
}

// MarkItemAsSold records a sale against an item. Calling it again for the
// same transaction is a no-op, so payment verification retries are safe.
func (s *Service) MarkItemAsSold(ctx context.Context, itemID, transactionID, buyerID string) error {
	err := s.store.MarkSold(ctx, itemID, transactionID, buyerID, time.Now().UTC())
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrAlreadySold) {
		return fmt.Errorf("failed to mark item sold: %w", err)
	}
	return err
}
