package ports

import (
	"context"
	"time"

	"qris-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repositories return (nil, nil) when a row does not exist. Unique index
// violations surface as the domain.ErrDuplicate* sentinels.

// PaymentRepository defines persistence operations for payment intents.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.PaymentIntent) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentIntent, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentIntent, error)
	GetByProviderRef(ctx context.Context, providerRef string) (*domain.PaymentIntent, error)
	List(ctx context.Context, params PaymentListParams) ([]domain.PaymentIntent, error)
	// TransitionStatus moves a pending intent to a new status. It reports
	// false without error when the intent is no longer pending.
	TransitionStatus(ctx context.Context, update domain.StatusUpdate) (bool, error)
	// RecordProviderStatus stores a raw upstream status without transitioning.
	RecordProviderStatus(ctx context.Context, id uuid.UUID, providerStatus string, at time.Time) error
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.PaymentIntent, error)
	GetStats(ctx context.Context, merchantID uuid.UUID, since *time.Time) (*PaymentStats, error)
}

// PaymentListParams filters a merchant's intents, newest first.
type PaymentListParams struct {
	MerchantID uuid.UUID
	Status     *domain.PaymentStatus
	Limit      int
}

// PaymentStats holds aggregated statistics for the dashboard.
type PaymentStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Paid      int64 `json:"paid"`
	Expired   int64 `json:"expired"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
	GrossPaid int64 `json:"gross_paid"` // Sum of paid amounts
	FeePaid   int64 `json:"fee_paid"`
	NetPaid   int64 `json:"net_paid"`
}

// ChannelRepository defines persistence for the payment channel catalog.
type ChannelRepository interface {
	// Seed inserts channels that do not exist yet and returns how many were added.
	Seed(ctx context.Context, channels []domain.PaymentChannel) (int, error)
	GetByCode(ctx context.Context, code string) (*domain.PaymentChannel, error)
	List(ctx context.Context, activeOnly bool) ([]domain.PaymentChannel, error)
	// SetActive reports false when the channel does not exist.
	SetActive(ctx context.Context, code string, active bool) (bool, error)
}

// MerchantRepository defines persistence operations for merchants.
// Create accepts a nil tx to run outside a transaction.
type MerchantRepository interface {
	Create(ctx context.Context, tx pgx.Tx, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByUsername(ctx context.Context, username string) (*domain.Merchant, error)
	UpdateCallbackSecret(ctx context.Context, id uuid.UUID, secretEnc string) error
}

// APIKeyRepository defines persistence operations for API keys.
// Create accepts a nil tx to run outside a transaction.
type APIKeyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, key *domain.APIKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.APIKey, error)
	GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.APIKey, error)
	// Deactivate reports false when no key with id belongs to merchantID.
	Deactivate(ctx context.Context, id, merchantID uuid.UUID) (bool, error)
	TouchUsage(ctx context.Context, id uuid.UUID, at time.Time) error
}

// WebhookLogRepository persists the append-only inbound callback log.
type WebhookLogRepository interface {
	Create(ctx context.Context, entry *domain.WebhookLog) error
	MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
	ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.WebhookLog, error)
}

// CallbackRepository persists outbound merchant callback deliveries.
type CallbackRepository interface {
	Create(ctx context.Context, delivery *domain.CallbackDelivery) error
	UpdateAttempt(ctx context.Context, delivery *domain.CallbackDelivery) error
}

// AuditRepository persists audit trail entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
