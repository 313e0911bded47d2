package ports

import (
	"context"
	"time"

	"qris-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(merchantID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	MerchantID uuid.UUID
	Username   string
}

// IdempotencyCache is the fast-path idempotency lookup in front of the
// payments table.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) // nil when absent
	Set(ctx context.Context, record domain.IdempotencyRecord, ttl time.Duration) error
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimitStore counts requests in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// EventPublisher emits payment lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.PaymentEvent) error
	Close() error
}

// --- Service Ports (Business Logic) ---

// FeeCalculator computes fee and net amounts.
type FeeCalculator interface {
	Calculate(amount int64, schedule domain.FeeSchedule) (fee int64, net int64)
}

// QRGenerator fabricates sandbox payment instructions.
type QRGenerator interface {
	QRString(paymentID uuid.UUID, amount int64) string
	PayCode(paymentID uuid.UUID, method string) string
}

// PaymentService is the payment intent state machine.
type PaymentService interface {
	Create(ctx context.Context, caller domain.Caller, req CreatePaymentRequest) (*CreatePaymentResult, error)
	Get(ctx context.Context, caller domain.Caller, idOrExternalID string) (*domain.PaymentIntent, error)
	List(ctx context.Context, caller domain.Caller, limit int, status *domain.PaymentStatus) ([]domain.PaymentIntent, int, error)
	Simulate(ctx context.Context, caller domain.Caller, idOrExternalID string, status domain.PaymentStatus) (*domain.PaymentIntent, error)
	CheckStatus(ctx context.Context, caller domain.Caller, idOrExternalID string) (*domain.PaymentIntent, error)
	// ApplyStatus transitions an intent on behalf of a trusted source
	// (webhook, expiry sweep). It reports whether the transition happened.
	ApplyStatus(ctx context.Context, payment *domain.PaymentIntent, status domain.PaymentStatus, providerStatus *string, paidAt *time.Time) (bool, error)
	ExpireOverdue(ctx context.Context, limit int) (int, error)
}

// CreatePaymentRequest holds validated input for intent creation.
type CreatePaymentRequest struct {
	ExternalID       string
	Amount           int64
	PaymentMethod    string
	Description      *string
	CustomerName     *string
	CustomerEmail    *string
	CustomerPhone    *string
	CallbackURL      *string
	ExpiresInMinutes int
	IdempotencyKey   *string
}

// CreatePaymentResult carries the intent and whether it was replayed.
type CreatePaymentResult struct {
	Payment  *domain.PaymentIntent
	Replayed bool
}

// WebhookService ingests inbound provider callbacks.
type WebhookService interface {
	Handle(ctx context.Context, req WebhookRequest) (*WebhookResult, error)
}

// WebhookRequest is a raw inbound callback.
type WebhookRequest struct {
	Provider  string
	RawBody   []byte
	Signature string
}

// WebhookResult describes how a callback was processed.
type WebhookResult struct {
	PaymentID uuid.UUID            `json:"payment_id"`
	Status    domain.PaymentStatus `json:"status"`
	Outcome   string               `json:"outcome"`
}

// CallbackService notifies merchants of status changes.
type CallbackService interface {
	Notify(ctx context.Context, payment *domain.PaymentIntent) error
}

// ChannelService manages the payment channel registry.
type ChannelService interface {
	Seed(ctx context.Context) (int, error)
	Resolve(ctx context.Context, code string) (*domain.PaymentChannel, error)
	ListActive(ctx context.Context) ([]domain.PaymentChannel, error)
	List(ctx context.Context) ([]domain.PaymentChannel, error)
	SetActive(ctx context.Context, code string, active bool) error
}

// APIKeyService issues and authenticates API keys.
type APIKeyService interface {
	Create(ctx context.Context, merchantID uuid.UUID, name string, mode domain.Mode) (*IssuedAPIKey, error)
	List(ctx context.Context, merchantID uuid.UUID) ([]domain.APIKey, error)
	Revoke(ctx context.Context, merchantID, keyID uuid.UUID) error
	Authenticate(ctx context.Context, plaintext string) (*domain.Caller, error)
}

// IssuedAPIKey holds a newly created key. Plaintext is shown only once.
type IssuedAPIKey struct {
	Key       *domain.APIKey
	Plaintext string
}

// AuthService defines dashboard authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for merchant registration.
type RegisterRequest struct {
	Username     string
	Password     string
	MerchantName string
}

// RegisterResponse holds the registration result shown once.
type RegisterResponse struct {
	MerchantID     uuid.UUID
	SandboxAPIKey  string
	CallbackSecret string
}

// MerchantService defines merchant self-service operations.
type MerchantService interface {
	GetProfile(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error)
	RotateCallbackSecret(ctx context.Context, merchantID uuid.UUID) (string, error)
}

// ReportingService defines dashboard/reporting business logic.
type ReportingService interface {
	GetDashboardStats(ctx context.Context, merchantID uuid.UUID, period string) (*PaymentStats, error)
}

// AuditService records audit trail entries asynchronously.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
