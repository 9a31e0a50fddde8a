package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// StripeGateway verifies payments against Stripe PaymentIntents. The escrow
// transaction ID travels in the intent's metadata under "transaction_id",
// set when the client creates the intent at checkout.
type StripeGateway struct {
	api     *client.API
	timeout time.Duration
}

// NewStripeGateway creates a gateway backed by the Stripe API.
func NewStripeGateway(secretKey string, timeout time.Duration) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeGateway{api: api, timeout: timeout}
}

func (g *StripeGateway) VerifyPayment(ctx context.Context, reference string) (*VerificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := g.api.PaymentIntents.Get(reference, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			// The reference is bad, not our connection to Stripe.
			return &VerificationResult{
				Reference: reference,
				Error:     stripeErr.Msg,
			}, nil
		}
		return nil, fmt.Errorf("stripe lookup failed: %w", err)
	}

	result := &VerificationResult{
		Reference:     intent.ID,
		Amount:        intent.Amount,
		TransactionID: intent.Metadata["transaction_id"],
		PaidAt:        time.Unix(intent.Created, 0).UTC(),
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		result.Success = true
	case stripe.PaymentIntentStatusCanceled:
		result.Error = "payment was cancelled"
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		result.Error = "payment was declined"
	default:
		result.Error = fmt.Sprintf("payment not completed (status %s)", intent.Status)
	}
	return result, nil
}

var _ Gateway = (*StripeGateway)(nil)
