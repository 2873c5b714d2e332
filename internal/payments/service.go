package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"payment-gateway/internal/auth"
	"payment-gateway/internal/kafka"
	"payment-gateway/internal/logger"
	"payment-gateway/internal/models"
	"payment-gateway/internal/payments/gateway"
	"payment-gateway/internal/sse"
	"payment-gateway/internal/storage"
	"payment-gateway/internal/utils"
)

var (
	ErrInvalidRequest      = errors.New("invalid payment request")
	ErrNotFound            = errors.New("not found")
	ErrUpstreamUnavailable = errors.New("database service unavailable")
	ErrOrderInFlight       = errors.New("a payment for this order is already in progress")
	ErrIntentNotAuthorized = errors.New("intent is not authorized")
)

// supportedCurrencies is the set of ISO 4217 codes the gateway accepts.
var supportedCurrencies = map[string]bool{
	"usd": true,
	"eur": true,
	"gbp": true,
	"inr": true,
	"lkr": true,
	"jpy": true,
	"aud": true,
	"cad": true,
	"sgd": true,
	"chf": true,
}

const defaultCurrency = "inr"

// Locker guards against duplicate work: idempotency keys for intent creation
// and per-order locks for concurrent submits.
type Locker interface {
	ReserveIdempotencyKey(ctx context.Context, key, recordID string) (string, bool, error)
	ReleaseIdempotencyKey(ctx context.Context, key, recordID string) error
	LockOrder(orderID, paymentID string) (bool, error)
	UnlockOrder(orderID, paymentID string) error
}

// PaymentService owns the PaymentRecord lifecycle. The database service
// behind Store stays the system of record; this service never caches its
// state beyond read-through queries.
type PaymentService struct {
	Store     storage.Store
	Gateway   gateway.Gateway
	Publisher kafka.Publisher
	Locks     Locker
	Emitter   *sse.PaymentEventEmitter

	processor processor
	logger    *logger.Logger
}

// NewPaymentService wires the service. syncMode selects the completion
// strategy at construction time: true blocks Submit until a terminal state,
// false completes on a background task. Publisher, Locks and Emitter may be
// nil; the corresponding feature is then skipped.
func NewPaymentService(store storage.Store, gw gateway.Gateway, publisher kafka.Publisher, locks Locker, emitter *sse.PaymentEventEmitter, syncMode bool, log *logger.Logger) *PaymentService {
	s := &PaymentService{
		Store:     store,
		Gateway:   gw,
		Publisher: publisher,
		Locks:     locks,
		Emitter:   emitter,
		logger:    log,
	}
	if syncMode {
		s.processor = &syncProcessor{svc: s}
	} else {
		s.processor = &asyncProcessor{svc: s}
	}
	return s
}

// ---------------- PAYMENTS ----------------

// Submit validates the request, records the payment as pending in the
// database service and hands it to the completion strategy. In sync mode the
// returned record is terminal; in async mode it is a snapshot of the pending
// record and the caller polls GetStatus (or subscribes to SSE) for the
// outcome.
func (s *PaymentService) Submit(ctx context.Context, req models.PaymentRequest) (*models.Payment, error) {
	if err := validatePaymentRequest(req); err != nil {
		return nil, err
	}

	payment := &models.Payment{
		PaymentID:   utils.GenerateID(),
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Currency:    normalizeCurrency(req.Currency),
		Method:      req.Method,
		UserID:      auth.UserID(ctx),
		Status:      models.StatusPending,
		CreatedDate: time.Now().UTC(),
	}

	s.logger.LogPayment("SUBMIT", payment.PaymentID, fmt.Sprintf("order %s, %.2f %s", payment.OrderID, payment.Amount, payment.Currency))

	if s.Locks != nil {
		ok, err := s.Locks.LockOrder(payment.OrderID, payment.PaymentID)
		if err != nil {
			return nil, fmt.Errorf("order lock error: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: order %s", ErrOrderInFlight, payment.OrderID)
		}
	}

	if err := s.Store.SavePayment(ctx, payment); err != nil {
		s.unlockOrder(payment)
		s.logger.Error("PAYMENT", fmt.Sprintf("Failed to persist payment %s: %v", payment.PaymentID, err))
		return nil, s.mapStoreErr(err)
	}

	if s.Publisher != nil {
		if err := s.Publisher.PublishPaymentCreated(*payment); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish payment.created for %s: %v", payment.PaymentID, err))
		}
	}
	s.emit("payment.created", payment)

	return s.processor.process(ctx, payment)
}

// GetStatus is a read-through status query against the system of record.
func (s *PaymentService) GetStatus(ctx context.Context, paymentID string) (*models.StatusResponse, error) {
	payment, err := s.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return &models.StatusResponse{
		PaymentID:     payment.PaymentID,
		Status:        payment.Status,
		FailureReason: payment.FailureReason,
	}, nil
}

// GetPayment returns the full record, e.g. for receipt rendering.
func (s *PaymentService) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	payment, err := s.Store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return payment, nil
}

// complete drives a persisted payment to its terminal state. It exclusively
// owns the record while running; concurrent status queries read the database
// service, never this struct.
func (s *PaymentService) complete(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	defer s.unlockOrder(payment)

	if err := s.transition(ctx, payment, models.StatusProcessing, ""); err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Payment %s could not enter processing: %v", payment.PaymentID, err))
		// Best effort: record the failure so the payment does not sit in
		// pending forever. If the store is still down this only logs.
		s.failPayment(ctx, payment, "could not start processing: "+err.Error())
		return payment, err
	}

	result, err := s.Gateway.Charge(ctx, payment)
	if err != nil {
		s.failPayment(ctx, payment, "gateway error: "+err.Error())
		return payment, fmt.Errorf("gateway charge failed: %w", err)
	}

	if !result.Approved {
		s.failPayment(ctx, payment, result.Message)
		return payment, nil
	}

	payment.TransactionID = result.TransactionID
	if err := s.transition(ctx, payment, models.StatusSucceeded, ""); err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Payment %s charged but not recorded as succeeded: %v", payment.PaymentID, err))
		return payment, err
	}

	if s.Publisher != nil {
		if err := s.Publisher.PublishPaymentSucceeded(*payment); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish payment.succeeded for %s: %v", payment.PaymentID, err))
		}
	}

	s.logger.LogPayment("SUCCEEDED", payment.PaymentID, fmt.Sprintf("txn %s", payment.TransactionID))
	return payment, nil
}

// failPayment marks the record failed with a reason. A failure here is logged
// but not propagated: the store may be the reason we are failing in the first
// place.
func (s *PaymentService) failPayment(ctx context.Context, payment *models.Payment, reason string) {
	if err := s.transition(ctx, payment, models.StatusFailed, reason); err != nil {
		s.logger.Error("PAYMENT", fmt.Sprintf("Failed to record failure of payment %s: %v", payment.PaymentID, err))
		return
	}

	if s.Publisher != nil {
		if err := s.Publisher.PublishPaymentFailed(*payment); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish payment.failed for %s: %v", payment.PaymentID, err))
		}
	}

	s.logger.LogPayment("FAILED", payment.PaymentID, reason)
}

// transition enforces the monotonic lifecycle and persists the new status.
func (s *PaymentService) transition(ctx context.Context, payment *models.Payment, next models.PaymentStatus, reason string) error {
	if !payment.Status.CanTransitionTo(next) {
		return fmt.Errorf("illegal status transition %s -> %s for payment %s", payment.Status, next, payment.PaymentID)
	}

	prevStatus, prevReason := payment.Status, payment.FailureReason
	payment.Status = next
	payment.FailureReason = reason
	payment.UpdatedDate = time.Now().UTC()

	if err := s.Store.UpdatePayment(ctx, payment); err != nil {
		// Keep the in-memory record aligned with the system of record.
		payment.Status = prevStatus
		payment.FailureReason = prevReason
		return s.mapStoreErr(err)
	}

	s.emit("payment."+string(next), payment)
	return nil
}

func (s *PaymentService) unlockOrder(payment *models.Payment) {
	if s.Locks == nil {
		return
	}
	if err := s.Locks.UnlockOrder(payment.OrderID, payment.PaymentID); err != nil {
		s.logger.Warn("REDIS", fmt.Sprintf("Failed to release order lock for %s: %v", payment.OrderID, err))
	}
}

func (s *PaymentService) emit(eventType string, payment *models.Payment) {
	if s.Emitter == nil {
		return
	}
	snapshot := *payment
	s.Emitter.EmitPaymentEvent(models.PaymentEvent{
		Type:      eventType,
		PaymentID: payment.PaymentID,
		OrderID:   payment.OrderID,
		Payment:   &snapshot,
		Timestamp: time.Now().UTC(),
	})
}

func (s *PaymentService) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, storage.ErrUnavailable):
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	default:
		return err
	}
}

// ---------------- INTENTS & CHARGES ----------------

// CreateIntent starts the two-phase flow. A repeated Idempotency-Key returns
// the intent created by the first call instead of a duplicate.
func (s *PaymentService) CreateIntent(ctx context.Context, req models.IntentRequest, idempotencyKey string) (*models.PaymentIntent, error) {
	if err := validateIntentRequest(req); err != nil {
		return nil, err
	}

	intentID := uuid.NewString()

	if idempotencyKey != "" && s.Locks != nil {
		existingID, fresh, err := s.Locks.ReserveIdempotencyKey(ctx, idempotencyKey, intentID)
		if err != nil {
			return nil, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !fresh {
			s.logger.Info("INTENT", fmt.Sprintf("Idempotency-Key replay, returning intent %s", existingID))
			intent, err := s.Store.GetIntent(ctx, existingID)
			if err != nil {
				return nil, s.mapStoreErr(err)
			}
			return intent, nil
		}
	}

	intent := &models.PaymentIntent{
		ID:          intentID,
		OrderID:     req.OrderID,
		Amount:      req.Amount,
		Currency:    normalizeCurrency(req.Currency),
		Status:      models.IntentRequiresConfirmation,
		CreatedDate: time.Now().UTC(),
	}

	if err := s.Store.SaveIntent(ctx, intent); err != nil {
		// Give the reservation back, otherwise every retry with this key
		// would replay an intent that was never persisted.
		if idempotencyKey != "" && s.Locks != nil {
			if relErr := s.Locks.ReleaseIdempotencyKey(ctx, idempotencyKey, intentID); relErr != nil {
				s.logger.Warn("REDIS", fmt.Sprintf("Failed to release idempotency key after store error: %v", relErr))
			}
		}
		return nil, s.mapStoreErr(err)
	}

	s.logger.Info("INTENT", fmt.Sprintf("Created intent %s for order %s", intent.ID, intent.OrderID))
	return intent, nil
}

// ConfirmIntent authorizes an intent. Confirming an already-confirmed intent
// is a no-op that returns the current state.
func (s *PaymentService) ConfirmIntent(ctx context.Context, intentID string) (*models.PaymentIntent, error) {
	intent, err := s.Store.GetIntent(ctx, intentID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	if intent.Status != models.IntentRequiresConfirmation {
		return intent, nil
	}

	intent.Status = models.IntentAuthorized
	intent.UpdatedDate = time.Now().UTC()
	if err := s.Store.UpdateIntent(ctx, intent); err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.logger.Info("INTENT", fmt.Sprintf("Intent %s authorized", intent.ID))
	return intent, nil
}

// CaptureIntent captures an authorized intent into a Charge.
func (s *PaymentService) CaptureIntent(ctx context.Context, intentID string) (*models.Charge, error) {
	intent, err := s.Store.GetIntent(ctx, intentID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	if intent.Status != models.IntentAuthorized {
		return nil, fmt.Errorf("%w: intent %s is %s", ErrIntentNotAuthorized, intent.ID, intent.Status)
	}

	charge := &models.Charge{
		ID:          utils.GenerateChargeID(),
		IntentID:    intent.ID,
		Amount:      intent.Amount,
		Status:      models.ChargeCaptured,
		CreatedDate: time.Now().UTC(),
	}

	if err := s.Store.SaveCharge(ctx, charge); err != nil {
		return nil, s.mapStoreErr(err)
	}

	intent.Status = models.IntentCaptured
	intent.UpdatedDate = time.Now().UTC()
	if err := s.Store.UpdateIntent(ctx, intent); err != nil {
		return nil, s.mapStoreErr(err)
	}

	s.logger.Info("INTENT", fmt.Sprintf("Intent %s captured as charge %s", intent.ID, charge.ID))
	return charge, nil
}

// RefundCharge refunds a captured charge. Refunding twice is idempotent.
func (s *PaymentService) RefundCharge(ctx context.Context, chargeID string) (*models.Charge, error) {
	charge, err := s.Store.GetCharge(ctx, chargeID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}

	if charge.Status == models.ChargeRefunded {
		return charge, nil
	}

	charge.Status = models.ChargeRefunded
	charge.UpdatedDate = time.Now().UTC()
	if err := s.Store.UpdateCharge(ctx, charge); err != nil {
		return nil, s.mapStoreErr(err)
	}

	if s.Publisher != nil {
		if err := s.Publisher.PublishChargeRefunded(*charge); err != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Failed to publish charge.refunded for %s: %v", charge.ID, err))
		}
	}

	s.logger.Info("CHARGE", fmt.Sprintf("Charge %s refunded", charge.ID))
	return charge, nil
}

// ---------------- VALIDATION ----------------

func validatePaymentRequest(req models.PaymentRequest) error {
	if strings.TrimSpace(req.OrderID) == "" {
		return fmt.Errorf("%w: order_id is required", ErrInvalidRequest)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidRequest)
	}
	if !supportedCurrencies[normalizeCurrency(req.Currency)] {
		return fmt.Errorf("%w: unrecognized currency %q", ErrInvalidRequest, req.Currency)
	}
	return nil
}

func validateIntentRequest(req models.IntentRequest) error {
	return validatePaymentRequest(models.PaymentRequest{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
}

func normalizeCurrency(currency string) string {
	if currency == "" {
		return defaultCurrency
	}
	return strings.ToLower(strings.TrimSpace(currency))
}
