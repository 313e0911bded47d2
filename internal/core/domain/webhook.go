package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookStage distinguishes the raw pre-verification entry from the
// processed-outcome entry of one inbound callback.
type WebhookStage string

const (
	WebhookStageReceived  WebhookStage = "received"
	WebhookStageProcessed WebhookStage = "processed"
)

// Webhook processing outcomes.
const (
	WebhookOutcomeReceived         = "received"
	WebhookOutcomeApplied          = "applied"
	WebhookOutcomeUnchanged        = "unchanged"
	WebhookOutcomeAlreadyTerminal  = "already_terminal"
	WebhookOutcomeUnknownStatus    = "unknown_status"
	WebhookOutcomeInvalidSignature = "invalid_signature"
	WebhookOutcomeUnresolved       = "unresolved"
	WebhookOutcomeMalformed        = "malformed"
)

// UnresolvedPaymentRef is recorded when a callback cannot be linked to an intent.
const UnresolvedPaymentRef = "unknown"

// WebhookLog is an append-only record of an inbound provider callback.
// Only ProcessedAt is ever stamped after insert.
type WebhookLog struct {
	ID          uuid.UUID    `json:"id"`
	Provider    string       `json:"provider"`
	Stage       WebhookStage `json:"stage"`
	EventType   string       `json:"event_type"`
	PaymentID   *uuid.UUID   `json:"payment_id,omitempty"`
	PaymentRef  string       `json:"payment_ref"`
	Payload     string       `json:"payload"`
	Signature   string       `json:"signature"`
	Verified    bool         `json:"verified"`
	Outcome     string       `json:"outcome"`
	Error       *string      `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	ProcessedAt *time.Time   `json:"processed_at,omitempty"`
}

// CallbackStatus is the delivery state of an outbound merchant callback.
type CallbackStatus string

const (
	CallbackStatusPending   CallbackStatus = "PENDING"
	CallbackStatusDelivered CallbackStatus = "DELIVERED"
	CallbackStatusFailed    CallbackStatus = "FAILED"

	// Interrupted deliveries were cut short by shutdown before the retry
	// schedule ran out.
	CallbackStatusInterrupted CallbackStatus = "INTERRUPTED"
)

// CallbackDelivery records the delivery of a status notification to a
// merchant's callback_url.
type CallbackDelivery struct {
	ID         uuid.UUID      `json:"id"`
	PaymentID  uuid.UUID      `json:"payment_id"`
	MerchantID uuid.UUID      `json:"merchant_id"`
	URL        string         `json:"url"`
	Payload    string         `json:"payload"`
	HTTPStatus *int           `json:"http_status"`
	Attempt    int            `json:"attempt"`
	Status     CallbackStatus `json:"status"`
	LastError  *string        `json:"last_error"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
