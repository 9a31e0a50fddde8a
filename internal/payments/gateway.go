// Package payments verifies buyer payments against the payment gateway and
// advances the matching escrow transaction to paid.
//
// Flow:
//  1. Buyer completes checkout on the client; the gateway returns a reference
//  2. Client calls POST /v1/payments/verify with that reference
//  3. We confirm the charge with the gateway, check the amount, and mark the
//     escrow transaction paid
//  4. A background worker marks the listed item sold, retrying independently
package payments

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrReferenceRequired = errors.New("payments: transaction reference is required")
	ErrAmountMismatch    = errors.New("payments: charged amount does not match transaction total")
	ErrUnknownReference  = errors.New("payments: reference does not resolve to a transaction")
)

// VerificationResult is the gateway's answer for a payment reference.
type VerificationResult struct {
	Success       bool
	Reference     string
	Amount        int64 // Charged amount in minor units
	TransactionID string
	PaidAt        time.Time
	Error         string // Gateway-reported failure, empty on success
}

// Gateway confirms charges with an external payment provider.
type Gateway interface {
	// VerifyPayment looks up a charge by its gateway reference. A failed or
	// unknown charge returns a result with Success=false and Error set; the
	// error return is reserved for transport problems.
	VerifyPayment(ctx context.Context, reference string) (*VerificationResult, error)
}
