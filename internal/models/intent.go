package models

import "time"

type IntentStatus string

const (
	IntentRequiresConfirmation IntentStatus = "requires_confirmation"
	IntentAuthorized           IntentStatus = "authorized"
	IntentCaptured             IntentStatus = "captured"
	IntentCanceled             IntentStatus = "canceled"
)

type ChargeStatus string

const (
	ChargeCaptured ChargeStatus = "captured"
	ChargeRefunded ChargeStatus = "refunded"
)

// PaymentIntent models the two-phase flow: an intent is created, confirmed
// (authorized) and finally captured into a Charge.
type PaymentIntent struct {
	ID          string       `json:"id"`
	OrderID     string       `json:"order_id"`
	Amount      float64      `json:"amount"`
	Currency    string       `json:"currency"`
	Status      IntentStatus `json:"status"`
	CreatedDate time.Time    `json:"created_date"`
	UpdatedDate time.Time    `json:"updated_date,omitempty"`
}

type Charge struct {
	ID          string       `json:"id"`
	IntentID    string       `json:"intent_id"`
	Amount      float64      `json:"amount"`
	Status      ChargeStatus `json:"status"`
	CreatedDate time.Time    `json:"created_date"`
	UpdatedDate time.Time    `json:"updated_date,omitempty"`
}

type IntentRequest struct {
	OrderID  string  `json:"order_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}
