package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/yrdly/platform/internal/escrow"
	"github.com/yrdly/platform/internal/logging"
	"github.com/yrdly/platform/internal/metrics"
	"github.com/yrdly/platform/internal/traces"
)

// GatewayError wraps a failure reported by the payment provider, as opposed
// to a transport or internal error.
type GatewayError struct {
	Reason string
}

func (e *GatewayError) Error() string { return e.Reason }

// SoldMarker receives the item of a paid transaction for mark-as-sold
// processing. Marking runs independently of verification: a marking failure
// never rolls back the payment.
type SoldMarker interface {
	Enqueue(itemID, transactionID, buyerID string)
}

// Verifier confirms gateway charges and advances escrow transactions to paid.
type Verifier struct {
	escrow  *escrow.Service
	gateway Gateway
	sold    SoldMarker
}

// NewVerifier creates a payment verifier.
func NewVerifier(escrowSvc *escrow.Service, gateway Gateway, sold SoldMarker) *Verifier {
	return &Verifier{escrow: escrowSvc, gateway: gateway, sold: sold}
}

// Verify confirms the charge behind a gateway reference and marks the escrow
// transaction paid. It is idempotent: verifying an already-paid transaction
// succeeds without touching the record.
func (v *Verifier) Verify(ctx context.Context, reference string) (*escrow.Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "payments.Verify", traces.Reference(reference))
	defer span.End()

	if reference == "" {
		metrics.PaymentVerificationsTotal.WithLabelValues("missing_reference").Inc()
		return nil, ErrReferenceRequired
	}

	result, err := v.gateway.VerifyPayment(ctx, reference)
	if err != nil {
		metrics.PaymentVerificationsTotal.WithLabelValues("gateway_error").Inc()
		return nil, fmt.Errorf("gateway verification failed: %w", err)
	}
	if !result.Success {
		metrics.PaymentVerificationsTotal.WithLabelValues("declined").Inc()
		reason := result.Error
		if reason == "" {
			reason = "payment verification failed"
		}
		return nil, &GatewayError{Reason: reason}
	}

	if result.TransactionID == "" {
		metrics.PaymentVerificationsTotal.WithLabelValues("unknown_reference").Inc()
		return nil, ErrUnknownReference
	}

	tx, err := v.escrow.Get(ctx, result.TransactionID)
	if err != nil {
		if errors.Is(err, escrow.ErrNotFound) {
			metrics.PaymentVerificationsTotal.WithLabelValues("unknown_reference").Inc()
			return nil, ErrUnknownReference
		}
		return nil, err
	}

	// Already verified: the client retried, or two verify calls raced.
	// Succeed without touching the record.
	if tx.PaidAt != nil {
		metrics.PaymentVerificationsTotal.WithLabelValues("already_verified").Inc()
		return tx, nil
	}

	if result.Amount != tx.TotalAmount {
		metrics.PaymentVerificationsTotal.WithLabelValues("amount_mismatch").Inc()
		logging.L(ctx).Warn("payment amount mismatch",
			"transactionId", tx.ID,
			"reference", reference,
			"charged", result.Amount,
			"expected", tx.TotalAmount)
		return nil, ErrAmountMismatch
	}

	paidAt := result.PaidAt
	update := &escrow.StatusUpdate{PaymentReference: reference}
	if !paidAt.IsZero() {
		update.PaidAt = &paidAt
	}

	tx, err = v.escrow.UpdateStatus(ctx, tx.ID, escrow.StatusPaid, update)
	if err != nil {
		// A concurrent verify may have landed first. Re-read: if the
		// record is paid now, this call still counts as a success.
		if errors.Is(err, escrow.ErrInvalidTransition) || errors.Is(err, escrow.ErrConflict) {
			current, getErr := v.escrow.Get(ctx, result.TransactionID)
			if getErr == nil && current.PaidAt != nil {
				metrics.PaymentVerificationsTotal.WithLabelValues("already_verified").Inc()
				return current, nil
			}
		}
		metrics.PaymentVerificationsTotal.WithLabelValues("transition_failed").Inc()
		return nil, err
	}

	metrics.PaymentVerificationsTotal.WithLabelValues("verified").Inc()
	logging.L(ctx).Info("payment verified",
		"transactionId", tx.ID,
		"reference", reference,
		"amount", tx.TotalAmount)

	if v.sold != nil {
		v.sold.Enqueue(tx.ItemID, tx.ID, tx.BuyerID)
	}
	return tx, nil
}
