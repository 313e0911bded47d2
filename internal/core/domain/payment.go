package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus is the lifecycle state of a payment intent.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"

	// PaymentStatusUnknown marks a provider status outside the mapping table.
	// It is never stored as an intent status; it flags a webhook or
	// reconciliation result for manual review.
	PaymentStatusUnknown PaymentStatus = "unknown_status"
)

// IsTerminal reports whether no further transition is allowed.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusExpired, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// IsValid reports whether s is one of the five stored statuses.
func (s PaymentStatus) IsValid() bool {
	return s == PaymentStatusPending || s.IsTerminal()
}

// Mode is the environment an API key (and every intent it creates) runs in.
type Mode string

const (
	ModeSandbox Mode = "sandbox"
	ModeLive    Mode = "live"
)

func (m Mode) IsValid() bool {
	return m == ModeSandbox || m == ModeLive
}

// Amount and expiry bounds for new intents.
const (
	MinAmount int64 = 1_000
	MaxAmount int64 = 100_000_000

	MinExpiryMinutes     = 5
	MaxExpiryMinutes     = 1440
	DefaultExpiryMinutes = 30

	MaxExternalIDLength = 100
)

// PaymentIntent is a merchant's record of an expected inbound payment.
// Amounts are in the smallest currency unit (IDR has no minor unit).
type PaymentIntent struct {
	ID             uuid.UUID     `json:"id"`
	MerchantID     uuid.UUID     `json:"merchant_id"`
	APIKeyID       uuid.UUID     `json:"api_key_id"`
	Mode           Mode          `json:"mode"`
	ExternalID     string        `json:"external_id"`
	IdempotencyKey *string       `json:"idempotency_key,omitempty"`
	Amount         int64         `json:"amount"`
	FeeAmount      int64         `json:"fee_amount"`
	NetAmount      int64         `json:"net_amount"`
	PaymentMethod  string        `json:"payment_method"`
	Status         PaymentStatus `json:"status"`
	Description    *string       `json:"description,omitempty"`
	CustomerName   *string       `json:"customer_name,omitempty"`
	CustomerEmail  *string       `json:"customer_email,omitempty"`
	CustomerPhone  *string       `json:"customer_phone,omitempty"`
	CallbackURL    *string       `json:"callback_url,omitempty"`
	QRString       *string       `json:"qr_string,omitempty"`
	PayCode        *string       `json:"pay_code,omitempty"`
	ProviderRef    *string       `json:"provider_ref,omitempty"`
	ProviderStatus *string       `json:"provider_status,omitempty"`
	ExpiresAt      time.Time     `json:"expires_at"`
	PaidAt         *time.Time    `json:"paid_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// IsTerminal returns true if the intent has left pending.
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status.IsTerminal()
}

// IsOverdue reports whether a pending intent has passed its expiry at now.
func (p *PaymentIntent) IsOverdue(now time.Time) bool {
	return p.Status == PaymentStatusPending && now.After(p.ExpiresAt)
}

// OwnedBy reports whether the intent belongs to merchantID.
func (p *PaymentIntent) OwnedBy(merchantID uuid.UUID) bool {
	return p.MerchantID == merchantID
}

// StatusUpdate is a compare-and-set transition out of pending.
type StatusUpdate struct {
	ID             uuid.UUID
	Status         PaymentStatus
	ProviderStatus *string
	PaidAt         *time.Time
	UpdatedAt      time.Time
}

// Caller is the authenticated API key context a request runs under.
type Caller struct {
	APIKeyID   uuid.UUID
	MerchantID uuid.UUID
	Mode       Mode
}

func (c Caller) IsSandbox() bool {
	return c.Mode == ModeSandbox
}
