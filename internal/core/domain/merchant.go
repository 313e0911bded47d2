package domain

import (
	"time"

	"github.com/google/uuid"
)

// MerchantStatus represents the state of a merchant account.
type MerchantStatus string

const (
	MerchantStatusActive      MerchantStatus = "ACTIVE"
	MerchantStatusSuspended   MerchantStatus = "SUSPENDED"
	MerchantStatusDeactivated MerchantStatus = "DEACTIVATED"
)

// Merchant owns API keys and payment intents.
type Merchant struct {
	ID                uuid.UUID      `json:"id"`
	Username          string         `json:"username"`
	PasswordHash      string         `json:"-"` // Never expose
	MerchantName      string         `json:"merchant_name"`
	CallbackSecretEnc string         `json:"-"` // AES-GCM encrypted callback signing secret
	Status            MerchantStatus `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// IsActive returns true if the merchant account is active.
func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}
