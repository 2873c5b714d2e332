package gateway

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"

	"payment-gateway/internal/logger"
	"payment-gateway/internal/models"
)

var (
	ErrStripeAPIError         = errors.New("stripe API error")
	ErrStripeClientInitFailed = errors.New("failed to initialize Stripe client")
)

// StripeService charges payments through Stripe.
type StripeService struct {
	client *client.API
	log    *logger.Logger
}

func NewStripeService(log *logger.Logger) (*StripeService, error) {
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		log.Error("STRIPE", "STRIPE_SECRET_KEY environment variable not set")
		return nil, ErrStripeClientInitFailed
	}

	sc := client.New(stripeKey, nil)
	if sc == nil {
		log.Error("STRIPE", "Failed to initialize Stripe client")
		return nil, ErrStripeClientInitFailed
	}

	log.Info("STRIPE", "Stripe client initialized successfully")
	return &StripeService{
		client: sc,
		log:    log,
	}, nil
}

// amountToMinorUnits converts a major-unit amount to the integer minor units
// Stripe expects. Rounding matters: 0.29*100 is 28.999... in float64 and
// truncation would undercharge by a cent.
func amountToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Charge creates and confirms a Stripe payment intent for the payment. The
// method descriptor is used as the payment method id (e.g. "pm_card_visa").
func (s *StripeService) Charge(ctx context.Context, payment *models.Payment) (*Result, error) {
	s.log.Info("STRIPE", fmt.Sprintf("Processing Stripe charge for order %s, amount: %.2f %s (payment: %s)",
		payment.OrderID, payment.Amount, payment.Currency, payment.PaymentID))

	paymentMethod := payment.Method
	if paymentMethod == "" {
		s.log.Error("STRIPE", fmt.Sprintf("No payment method for payment %s", payment.PaymentID))
		return nil, fmt.Errorf("%w: payment method is required", ErrStripeAPIError)
	}

	amountInCents := amountToMinorUnits(payment.Amount)

	params := &stripe.PaymentIntentParams{
		Params: stripe.Params{
			Context: ctx,
		},
		Amount:        stripe.Int64(amountInCents),
		Currency:      stripe.String(strings.ToLower(payment.Currency)),
		PaymentMethod: stripe.String(paymentMethod),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.AddMetadata("order_id", payment.OrderID)
	params.AddMetadata("payment_id", payment.PaymentID)

	intent, err := s.client.PaymentIntents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			s.log.Warn("STRIPE", fmt.Sprintf("Card declined for payment %s: %v", payment.PaymentID, stripeErr.Msg))
			return &Result{
				Approved: false,
				Message:  stripeErr.Msg,
			}, nil
		}
		s.log.Error("STRIPE", fmt.Sprintf("Failed to create payment intent: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrStripeAPIError, err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		s.log.Warn("STRIPE", fmt.Sprintf("Payment intent %s finished with status %s", intent.ID, intent.Status))
		return &Result{
			TransactionID: intent.ID,
			Approved:      false,
			Message:       fmt.Sprintf("payment intent status: %s", intent.Status),
		}, nil
	}

	s.log.Info("STRIPE", fmt.Sprintf("Charge succeeded for payment %s (intent: %s)", payment.PaymentID, intent.ID))
	return &Result{
		TransactionID: intent.ID,
		Approved:      true,
		Message:       "approved",
	}, nil
}
