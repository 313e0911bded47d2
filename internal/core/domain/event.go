package domain

import (
	"time"

	"github.com/google/uuid"
)

// Payment event types published on the events topic.
const (
	EventPaymentCreated = "payment.created"
)

// EventTypeFor returns the event type for a transition into status.
func EventTypeFor(status PaymentStatus) string {
	return "payment." + string(status)
}

// PaymentEvent is the message published whenever an intent is created or
// changes status.
type PaymentEvent struct {
	Type          string        `json:"type"`
	PaymentID     uuid.UUID     `json:"payment_id"`
	MerchantID    uuid.UUID     `json:"merchant_id"`
	ExternalID    string        `json:"external_id"`
	Status        PaymentStatus `json:"status"`
	Amount        int64         `json:"amount"`
	FeeAmount     int64         `json:"fee_amount"`
	NetAmount     int64         `json:"net_amount"`
	PaymentMethod string        `json:"payment_method"`
	Mode          Mode          `json:"mode"`
	PaidAt        *time.Time    `json:"paid_at,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// NewPaymentEvent snapshots an intent into an event.
func NewPaymentEvent(eventType string, p *PaymentIntent, at time.Time) PaymentEvent {
	return PaymentEvent{
		Type:          eventType,
		PaymentID:     p.ID,
		MerchantID:    p.MerchantID,
		ExternalID:    p.ExternalID,
		Status:        p.Status,
		Amount:        p.Amount,
		FeeAmount:     p.FeeAmount,
		NetAmount:     p.NetAmount,
		PaymentMethod: p.PaymentMethod,
		Mode:          p.Mode,
		PaidAt:        p.PaidAt,
		OccurredAt:    at,
	}
}
