package escrow

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yrdly/platform/internal/pagination"
	"github.com/yrdly/platform/internal/validation"
)

// Handler provides HTTP endpoints for escrow transactions.
type Handler struct {
	service *Service
}

// NewHandler creates a new escrow handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up escrow routes on a router group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions", h.CreateTransaction)
	r.GET("/transactions/:id", h.GetTransaction)
	r.POST("/transactions/:id/status", h.UpdateStatus)
	r.PUT("/transactions/:id/delivery", h.UpdateDelivery)
	r.POST("/transactions/:id/dispute", h.DisputeTransaction)
	r.POST("/transactions/:id/resolve", h.ResolveDispute)
	r.GET("/users/:id/purchases", h.ListPurchases)
	r.GET("/users/:id/sales", h.ListSales)
	r.GET("/stats", h.GetStats)
}

// CreateTransaction handles POST /v1/transactions
func (h *Handler) CreateTransaction(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.NonEmpty("itemId", req.ItemID),
		validation.NonEmpty("buyerId", req.BuyerID),
		validation.NonEmpty("sellerId", req.SellerID),
		validation.PositiveAmount("amount", req.Amount),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}
	req.Delivery.Notes = validation.SanitizeString(req.Delivery.Notes, validation.MaxNoteLength)

	tx, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSelfTrade):
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "create_failed",
				"message": "Failed to create transaction",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// GetTransaction handles GET /v1/transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	tx, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// UpdateStatusRequest is the body of POST /v1/transactions/:id/status.
type UpdateStatusRequest struct {
	Status           Status `json:"status" binding:"required"`
	PaymentReference string `json:"paymentReference"`
}

// UpdateStatus handles POST /v1/transactions/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "status is required",
		})
		return
	}

	tx, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status,
		&StatusUpdate{PaymentReference: req.PaymentReference})
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// UpdateDelivery handles PUT /v1/transactions/:id/delivery
func (h *Handler) UpdateDelivery(c *gin.Context) {
	var req DeliveryDetails
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "delivery option is required",
		})
		return
	}
	req.Notes = validation.SanitizeString(req.Notes, validation.MaxNoteLength)

	tx, err := h.service.UpdateDeliveryDetails(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// DisputeRequest is the body of POST /v1/transactions/:id/dispute.
type DisputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// DisputeTransaction handles POST /v1/transactions/:id/dispute
func (h *Handler) DisputeTransaction(c *gin.Context) {
	var req DisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "reason is required",
		})
		return
	}

	tx, err := h.service.Dispute(c.Request.Context(), c.Param("id"),
		validation.SanitizeString(req.Reason, validation.MaxNoteLength))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ResolveRequest is the body of POST /v1/transactions/:id/resolve.
type ResolveRequest struct {
	Resolution string `json:"resolution" binding:"required"`
}

// ResolveDispute handles POST /v1/transactions/:id/resolve
func (h *Handler) ResolveDispute(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "resolution is required",
		})
		return
	}

	tx, err := h.service.ResolveDispute(c.Request.Context(), c.Param("id"),
		validation.SanitizeString(req.Resolution, validation.MaxNoteLength))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ListPurchases handles GET /v1/users/:id/purchases
func (h *Handler) ListPurchases(c *gin.Context) {
	h.listForUser(c, h.service.ListByBuyer)
}

// ListSales handles GET /v1/users/:id/sales
func (h *Handler) ListSales(c *gin.Context) {
	h.listForUser(c, h.service.ListBySeller)
}

func (h *Handler) listForUser(c *gin.Context, list func(ctx context.Context, userID string, limit int, cursor *pagination.Cursor) ([]*Transaction, error)) {
	limit := parseLimit(c)

	var cursor *pagination.Cursor
	if raw := c.Query("cursor"); raw != "" {
		decoded, err := pagination.Decode(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_cursor",
				"message": "Invalid pagination cursor",
			})
			return
		}
		cursor = decoded
	}

	items, err := list(c.Request.Context(), c.Param("id"), limit, cursor)
	if err != nil {
		h.renderError(c, err)
		return
	}

	page, next, hasMore := pagination.ComputePage(items, limit, func(tx *Transaction) (time.Time, string) {
		return tx.CreatedAt, tx.ID
	})
	c.JSON(http.StatusOK, gin.H{
		"transactions": page,
		"nextCursor":   next,
		"hasMore":      hasMore,
	})
}

// GetStats handles GET /v1/stats
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to compute stats",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// renderError maps service errors to HTTP responses.
func (h *Handler) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrNotDisputed),
		errors.Is(err, ErrAlreadyResolved), errors.Is(err, ErrDeliveryLocked):
		status = http.StatusConflict
		code = "invalid_state"
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
		code = "conflict"
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrSelfTrade):
		status = http.StatusBadRequest
		code = "validation_error"
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

// parseLimit reads the limit query param, bounded at 200.
func parseLimit(c *gin.Context) int {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}
	return limit
}
