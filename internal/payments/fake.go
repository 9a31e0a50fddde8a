package payments

import (
	"context"
	"sync"
	"time"
)

// FakeGateway is an in-memory gateway for demo/development mode. Charges are
// registered by tests or seed scripts; unknown references fail verification.
type FakeGateway struct {
	mu      sync.RWMutex
	charges map[string]*VerificationResult
}

// NewFakeGateway creates an empty fake gateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{charges: make(map[string]*VerificationResult)}
}

// Succeed registers a successful charge for a reference.
func (g *FakeGateway) Succeed(reference, transactionID string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[reference] = &VerificationResult{
		Success:       true,
		Reference:     reference,
		Amount:        amount,
		TransactionID: transactionID,
		PaidAt:        time.Now().UTC(),
	}
}

// Fail registers a failed charge for a reference.
func (g *FakeGateway) Fail(reference, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges[reference] = &VerificationResult{
		Reference: reference,
		Error:     reason,
	}
}

func (g *FakeGateway) VerifyPayment(ctx context.Context, reference string) (*VerificationResult, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if r, ok := g.charges[reference]; ok {
		cp := *r
		return &cp, nil
	}
	return &VerificationResult{
		Reference: reference,
		Error:     "no charge found for this reference",
	}, nil
}

var _ Gateway = (*FakeGateway)(nil)
