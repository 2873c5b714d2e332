package models

import (
	"time"
)

type PaymentStatus string

const (
	StatusPending    PaymentStatus = "pending"
	StatusProcessing PaymentStatus = "processing"
	StatusSucceeded  PaymentStatus = "succeeded"
	StatusFailed     PaymentStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed from this status.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// CanTransitionTo enforces the payment lifecycle:
// pending -> processing -> succeeded | failed.
// Terminal states are never re-entered.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusFailed
	case StatusProcessing:
		return next == StatusSucceeded || next == StatusFailed
	default:
		return false
	}
}

type Payment struct {
	PaymentID     string        `json:"payment_id"`
	OrderID       string        `json:"order_id"`
	Amount        float64       `json:"amount"`
	Currency      string        `json:"currency"`
	Method        string        `json:"method,omitempty"` // payment method descriptor, e.g. "card" or a provider token
	UserID        string        `json:"user_id,omitempty"`
	Status        PaymentStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	CreatedDate   time.Time     `json:"created_date"`
	UpdatedDate   time.Time     `json:"updated_date,omitempty"`
}

type PaymentRequest struct {
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
	Method   string  `json:"method,omitempty"`
}

// StatusResponse is the payload of a status query.
type StatusResponse struct {
	PaymentID     string        `json:"payment_id"`
	Status        PaymentStatus `json:"status"`
	FailureReason string        `json:"failure_reason,omitempty"`
}

type PaymentEvent struct {
	Type      string    `json:"type"`
	PaymentID string    `json:"payment_id"`
	OrderID   string    `json:"order_id"`
	Payment   *Payment  `json:"payment"`
	Timestamp time.Time `json:"timestamp"`
}
