package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionCreatePayment   AuditAction = "CREATE_PAYMENT"
	AuditActionSimulatePayment AuditAction = "SIMULATE_PAYMENT"
	AuditActionRegister        AuditAction = "REGISTER"
	AuditActionLogin           AuditAction = "LOGIN"
	AuditActionCreateAPIKey    AuditAction = "CREATE_API_KEY"
	AuditActionRevokeAPIKey    AuditAction = "REVOKE_API_KEY"
	AuditActionRotateCallback  AuditAction = "ROTATE_CALLBACK_SECRET"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	MerchantID   *uuid.UUID  `json:"merchant_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address"`
	CreatedAt    time.Time   `json:"created_at"`
}
