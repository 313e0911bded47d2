package domain

import (
	"time"

	"github.com/google/uuid"
)

// APIKey authenticates server-to-server calls. Only the SHA-256 hash of the
// secret is stored; the plaintext is returned once at creation.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	MerchantID uuid.UUID  `json:"merchant_id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	KeyHash    string     `json:"-"`
	Mode       Mode       `json:"mode"`
	IsActive   bool       `json:"is_active"`
	UsageCount int64      `json:"usage_count"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
