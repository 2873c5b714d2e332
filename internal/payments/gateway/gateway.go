package gateway

import (
	"context"
	"fmt"

	"payment-gateway/internal/logger"
	"payment-gateway/internal/models"
	"payment-gateway/internal/utils"
)

// Result is the outcome of a charge attempt. A declined charge is a normal
// Result with Approved=false, not an error; errors mean the gateway itself
// failed.
type Result struct {
	TransactionID string
	Approved      bool
	Message       string
}

// Gateway abstracts the payment provider that actually moves money.
type Gateway interface {
	Charge(ctx context.Context, payment *models.Payment) (*Result, error)
}

// MockGateway simulates a provider without external calls. It approves every
// charge unless the method descriptor is "card_declined", mirroring provider
// test tokens.
type MockGateway struct {
	log *logger.Logger
}

func NewMockGateway(log *logger.Logger) *MockGateway {
	return &MockGateway{log: log}
}

func (g *MockGateway) Charge(ctx context.Context, payment *models.Payment) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if payment.Method == "card_declined" {
		g.log.LogPayment("DECLINE", payment.PaymentID, "Mock gateway declined the charge")
		return &Result{
			Approved: false,
			Message:  "card declined",
		}, nil
	}

	txnID := utils.GenerateTransactionID()
	g.log.LogPayment("CHARGE", payment.PaymentID, fmt.Sprintf("Mock gateway approved %.2f %s (txn: %s)", payment.Amount, payment.Currency, txnID))

	return &Result{
		TransactionID: txnID,
		Approved:      true,
		Message:       "approved",
	}, nil
}
