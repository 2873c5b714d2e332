package storage

import (
	"context"
	"errors"

	"payment-gateway/internal/models"
)

var (
	// ErrNotFound means the database service has no record for the id.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable means the database service could not be reached or
	// kept failing after the configured retries.
	ErrUnavailable = errors.New("database service unavailable")
)

// Store is the persistence boundary of the gateway. The external database
// service behind it is the system of record: after a successful write
// acknowledgement its state is authoritative and reads always go through.
type Store interface {
	SavePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	UpdatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)

	SaveIntent(ctx context.Context, intent *models.PaymentIntent) error
	GetIntent(ctx context.Context, id string) (*models.PaymentIntent, error)
	UpdateIntent(ctx context.Context, intent *models.PaymentIntent) error

	SaveCharge(ctx context.Context, charge *models.Charge) error
	GetCharge(ctx context.Context, id string) (*models.Charge, error)
	UpdateCharge(ctx context.Context, charge *models.Charge) error

	HealthCheck(ctx context.Context) error
}
