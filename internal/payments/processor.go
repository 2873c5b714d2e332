package payments

import (
	"context"
	"fmt"

	"payment-gateway/internal/models"
)

// processor is the completion strategy selected at construction: it takes a
// freshly persisted pending payment and is responsible for reaching a
// terminal state.
type processor interface {
	process(ctx context.Context, payment *models.Payment) (*models.Payment, error)
}

// syncProcessor blocks the caller until the payment is terminal.
type syncProcessor struct {
	svc *PaymentService
}

func (p *syncProcessor) process(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	return p.svc.complete(ctx, payment)
}

// asyncProcessor acknowledges immediately and completes on a background
// task. The record handed back to the caller is a snapshot; the background
// task owns the live record from here on.
type asyncProcessor struct {
	svc *PaymentService
}

func (p *asyncProcessor) process(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	snapshot := *payment

	// A disconnecting caller must not cancel completion.
	bgCtx := context.WithoutCancel(ctx)
	go func() {
		if _, err := p.svc.complete(bgCtx, payment); err != nil {
			p.svc.logger.Error("PAYMENT", fmt.Sprintf("Background completion of %s failed: %v", payment.PaymentID, err))
		}
	}()

	return &snapshot, nil
}
