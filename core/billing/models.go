package billing

import (
	"encoding/json"
	"time"
)

// Stripe event types this service understands.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventPaymentSucceeded  = "payment_intent.succeeded"
	EventPaymentFailed     = "payment_intent.payment_failed"
)

// WebhookEvent is one row of the idempotency ledger: one row per provider
// event id, unique-constrained on EventID.
type WebhookEvent struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	Processed      bool      `json:"processed"`
	ProcessedAt    time.Time `json:"processed_at"` // UTC, zero until processed
	UserID         string    `json:"user_id"`
	CreditsApplied int       `json:"credits_applied"`
	ErrorMessage   string    `json:"error_message"`
	RetryCount     int       `json:"retry_count"`
	CreatedAt      time.Time `json:"created_at"` // UTC
}

type CreditBalance struct {
	UserID    string    `json:"user_id"`
	Credits   int       `json:"credits"`
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// CreditTransaction is an immutable audit record of one balance change.
type CreditTransaction struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Credits         int       `json:"credits"`
	PackageID       string    `json:"package_id"`
	StripeSessionID string    `json:"stripe_session_id"`
	StripePaymentID string    `json:"stripe_payment_id"`
	CreatedAt       time.Time `json:"created_at"` // UTC
}

// Event is the provider's signed JSON envelope, reduced to what we consume.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the data.object payload of a checkout.session.completed
// event.
type CheckoutSession struct {
	ID            string            `json:"id"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"` // user_id, credits, package_id
}

// PaymentIntent is the data.object payload of payment_intent.* events.
type PaymentIntent struct {
	ID               string `json:"id"`
	LastPaymentError struct {
		Message string `json:"message"`
	} `json:"last_payment_error"`
	Metadata map[string]string `json:"metadata"`
}
