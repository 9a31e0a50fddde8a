package payments

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yrdly/platform/internal/escrow"
	"github.com/yrdly/platform/internal/logging"
)

// Handler provides the payment verification endpoint.
type Handler struct {
	verifier *Verifier
}

// NewHandler creates a new payments handler.
func NewHandler(verifier *Verifier) *Handler {
	return &Handler{verifier: verifier}
}

// RegisterRoutes sets up payment routes on a router group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/payments/verify", h.VerifyPayment)
}

// VerifyRequest is the body of POST /v1/payments/verify.
type VerifyRequest struct {
	TransactionReference string `json:"transactionReference"`
}

// VerifyPayment handles POST /v1/payments/verify.
//
// The response shape is part of the client contract; the mobile and web apps
// both switch on these exact fields.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TransactionReference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Transaction reference is required"})
		return
	}

	tx, err := h.verifier.Verify(c.Request.Context(), req.TransactionReference)
	if err != nil {
		var gwErr *GatewayError
		switch {
		case errors.Is(err, ErrReferenceRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Transaction reference is required"})
		case errors.As(err, &gwErr):
			c.JSON(http.StatusBadRequest, gin.H{"error": gwErr.Reason})
		case errors.Is(err, ErrAmountMismatch):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Payment amount does not match the transaction"})
		case errors.Is(err, ErrUnknownReference):
			c.JSON(http.StatusNotFound, gin.H{"error": "No transaction found for this reference"})
		case errors.Is(err, escrow.ErrConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Transaction was modified concurrently, please retry"})
		default:
			logging.L(c.Request.Context()).Error("payment verification failed",
				"reference", req.TransactionReference, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"message":       "Payment verified successfully",
		"transactionId": tx.ID,
		"amount":        tx.TotalAmount,
	})
}
