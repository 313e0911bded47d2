package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, merchant_id, api_key_id, mode, external_id, idempotency_key,
	amount, fee_amount, net_amount, payment_method, status, description,
	customer_name, customer_email, customer_phone, callback_url, qr_string, pay_code,
	provider_ref, provider_status, expires_at, paid_at, created_at, updated_at`

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

// Create inserts a new payment intent. Unique index violations on
// external_id and idempotency_key map to the domain duplicate errors.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.PaymentIntent) error {
	query := `INSERT INTO payment_intents (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.MerchantID, p.APIKeyID, p.Mode, p.ExternalID, p.IdempotencyKey,
		p.Amount, p.FeeAmount, p.NetAmount, p.PaymentMethod, p.Status, p.Description,
		p.CustomerName, p.CustomerEmail, p.CustomerPhone, p.CallbackURL, p.QRString, p.PayCode,
		p.ProviderRef, p.ProviderStatus, p.ExpiresAt, p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		switch uniqueViolation(err) {
		case "payment_intents_external_id_key":
			return domain.ErrDuplicateExternalID
		case "payment_intents_idempotency_key_key":
			return domain.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

// GetByID fetches a payment intent by UUID.
func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_intents WHERE id = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, id))
}

// GetByExternalID fetches a payment intent by the merchant's order reference.
func (r *PaymentRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentIntent, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_intents WHERE external_id = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, externalID))
}

// GetByIdempotencyKey fetches the intent created under an idempotency key.
func (r *PaymentRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentIntent, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_intents WHERE idempotency_key = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, key))
}

// GetByProviderRef fetches an intent by the upstream transaction reference.
func (r *PaymentRepo) GetByProviderRef(ctx context.Context, providerRef string) (*domain.PaymentIntent, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_intents WHERE provider_ref = $1 LIMIT 1`
	return scanPayment(r.pool.QueryRow(ctx, query, providerRef))
}

// List fetches a merchant's intents, newest first.
func (r *PaymentRepo) List(ctx context.Context, params ports.PaymentListParams) ([]domain.PaymentIntent, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", argIdx))
	args = append(args, params.MerchantID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *params.Status)
		argIdx++
	}

	query := fmt.Sprintf(`SELECT %s FROM payment_intents WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		paymentColumns, strings.Join(conditions, " AND "), argIdx)
	args = append(args, params.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list payment intents: %w", err)
	}
	return collectPayments(rows)
}

// TransitionStatus moves a pending intent to update.Status. The status
// guard in the WHERE clause makes concurrent transitions race-free: only
// one writer sees a row affected.
func (r *PaymentRepo) TransitionStatus(ctx context.Context, update domain.StatusUpdate) (bool, error) {
	query := `UPDATE payment_intents
		SET status = $1, provider_status = COALESCE($2, provider_status), paid_at = $3, updated_at = $4
		WHERE id = $5 AND status = 'pending'`

	tag, err := r.pool.Exec(ctx, query,
		update.Status, update.ProviderStatus, update.PaidAt, update.UpdatedAt, update.ID,
	)
	if err != nil {
		return false, fmt.Errorf("transition payment status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordProviderStatus stores a raw upstream status without transitioning.
func (r *PaymentRepo) RecordProviderStatus(ctx context.Context, id uuid.UUID, providerStatus string, at time.Time) error {
	query := `UPDATE payment_intents SET provider_status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.pool.Exec(ctx, query, providerStatus, at, id); err != nil {
		return fmt.Errorf("record provider status: %w", err)
	}
	return nil
}

// ListOverdue returns pending intents whose expiry has passed, oldest first.
func (r *PaymentRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.PaymentIntent, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_intents
		WHERE status = 'pending' AND expires_at < $1 ORDER BY expires_at LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue payment intents: %w", err)
	}
	return collectPayments(rows)
}

// GetStats retrieves aggregated payment statistics for a merchant.
func (r *PaymentRepo) GetStats(ctx context.Context, merchantID uuid.UUID, since *time.Time) (*ports.PaymentStats, error) {
	args := []any{merchantID}
	condition := "merchant_id = $1"
	if since != nil {
		condition += " AND created_at >= $2"
		args = append(args, *since)
	}

	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'pending') AS pending,
		COUNT(*) FILTER (WHERE status = 'paid') AS paid,
		COUNT(*) FILTER (WHERE status = 'expired') AS expired,
		COUNT(*) FILTER (WHERE status = 'failed') AS failed,
		COUNT(*) FILTER (WHERE status = 'cancelled') AS cancelled,
		COALESCE(SUM(amount) FILTER (WHERE status = 'paid'), 0) AS gross_paid,
		COALESCE(SUM(fee_amount) FILTER (WHERE status = 'paid'), 0) AS fee_paid,
		COALESCE(SUM(net_amount) FILTER (WHERE status = 'paid'), 0) AS net_paid
		FROM payment_intents WHERE %s`, condition)

	stats := &ports.PaymentStats{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total, &stats.Pending, &stats.Paid, &stats.Expired, &stats.Failed, &stats.Cancelled,
		&stats.GrossPaid, &stats.FeePaid, &stats.NetPaid,
	)
	if err != nil {
		return nil, fmt.Errorf("get payment stats: %w", err)
	}
	return stats, nil
}

func scanPayment(row pgx.Row) (*domain.PaymentIntent, error) {
	p := &domain.PaymentIntent{}
	err := row.Scan(
		&p.ID, &p.MerchantID, &p.APIKeyID, &p.Mode, &p.ExternalID, &p.IdempotencyKey,
		&p.Amount, &p.FeeAmount, &p.NetAmount, &p.PaymentMethod, &p.Status, &p.Description,
		&p.CustomerName, &p.CustomerEmail, &p.CustomerPhone, &p.CallbackURL, &p.QRString, &p.PayCode,
		&p.ProviderRef, &p.ProviderStatus, &p.ExpiresAt, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment intent: %w", err)
	}
	return p, nil
}

func collectPayments(rows pgx.Rows) ([]domain.PaymentIntent, error) {
	defer rows.Close()

	var out []domain.PaymentIntent
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}
	return out, nil
}
