package dto

import (
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
)

// RegisterRequest is the request body for merchant registration.
type RegisterRequest struct {
	Username     string `json:"username" binding:"required,min=3,max=50"`
	Password     string `json:"password" binding:"required,min=8,max=128"`
	MerchantName string `json:"merchant_name" binding:"required,min=1,max=100"`
}

// LoginRequest is the request body for merchant login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterResponse carries the credentials shown once at registration.
type RegisterResponse struct {
	MerchantID     string `json:"merchant_id"`
	SandboxAPIKey  string `json:"sandbox_api_key"`
	CallbackSecret string `json:"callback_secret"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// CreatePaymentRequest is the request body for POST /api/v1/payments.
// Amount bounds and the payment_method enum are enforced by the service so
// they surface as AMOUNT_OUT_OF_RANGE and field-level validation errors.
type CreatePaymentRequest struct {
	ExternalID       string  `json:"external_id" binding:"required,max=100"`
	Amount           int64   `json:"amount"`
	PaymentMethod    string  `json:"payment_method" binding:"omitempty,max=20"`
	Description      *string `json:"description,omitempty" binding:"omitempty,max=255"`
	CustomerName     *string `json:"customer_name,omitempty" binding:"omitempty,max=100"`
	CustomerEmail    *string `json:"customer_email,omitempty" binding:"omitempty,email,max=255"`
	CustomerPhone    *string `json:"customer_phone,omitempty" binding:"omitempty,max=20"`
	CallbackURL      *string `json:"callback_url,omitempty" binding:"omitempty,safe_url,max=500"`
	ExpiresInMinutes int     `json:"expires_in_minutes"`
	IdempotencyKey   *string `json:"idempotency_key,omitempty" binding:"omitempty,max=100,safe_id"`
}

// ToPort converts the body into the service input. idempotencyKey is the
// already reconciled header/body key.
func (r CreatePaymentRequest) ToPort(idempotencyKey *string) ports.CreatePaymentRequest {
	return ports.CreatePaymentRequest{
		ExternalID:       r.ExternalID,
		Amount:           r.Amount,
		PaymentMethod:    r.PaymentMethod,
		Description:      r.Description,
		CustomerName:     r.CustomerName,
		CustomerEmail:    r.CustomerEmail,
		CustomerPhone:    r.CustomerPhone,
		CallbackURL:      r.CallbackURL,
		ExpiresInMinutes: r.ExpiresInMinutes,
		IdempotencyKey:   idempotencyKey,
	}
}

// SimulateRequest is the request body for POST /api/v1/payments/:id/simulate.
type SimulateRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListMeta is the meta block of GET /api/v1/payments.
type ListMeta struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

// PaymentStatusResponse is the compact view returned by the status endpoint.
type PaymentStatusResponse struct {
	ID             string               `json:"id"`
	ExternalID     string               `json:"external_id"`
	Status         domain.PaymentStatus `json:"status"`
	ProviderStatus *string              `json:"provider_status"`
	Amount         int64                `json:"amount"`
	FeeAmount      int64                `json:"fee_amount"`
	NetAmount      int64                `json:"net_amount"`
	ExpiresAt      time.Time            `json:"expires_at"`
	PaidAt         *time.Time           `json:"paid_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func NewPaymentStatusResponse(p *domain.PaymentIntent) PaymentStatusResponse {
	return PaymentStatusResponse{
		ID:             p.ID.String(),
		ExternalID:     p.ExternalID,
		Status:         p.Status,
		ProviderStatus: p.ProviderStatus,
		Amount:         p.Amount,
		FeeAmount:      p.FeeAmount,
		NetAmount:      p.NetAmount,
		ExpiresAt:      p.ExpiresAt,
		PaidAt:         p.PaidAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// CreateAPIKeyRequest is the request body for POST /api/v1/api-keys.
type CreateAPIKeyRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
	Mode string `json:"mode" binding:"required,oneof=sandbox live"`
}

// CreateAPIKeyResponse includes the plaintext key, shown once.
type CreateAPIKeyResponse struct {
	*domain.APIKey
	Key string `json:"key"`
}

// RotateSecretResponse carries a new callback secret, shown once.
type RotateSecretResponse struct {
	CallbackSecret string `json:"callback_secret"`
}

// WebhookAck is the body returned to providers.
type WebhookAck struct {
	Received  bool                 `json:"received"`
	PaymentID string               `json:"payment_id,omitempty"`
	Status    domain.PaymentStatus `json:"status,omitempty"`
	Outcome   string               `json:"outcome"`
}
