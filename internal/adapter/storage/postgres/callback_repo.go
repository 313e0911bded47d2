package postgres

import (
	"context"
	"fmt"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
)

type callbackRepo struct {
	pool Pool
}

// NewCallbackRepository creates a PostgreSQL-backed CallbackRepository.
func NewCallbackRepository(pool Pool) ports.CallbackRepository {
	return &callbackRepo{pool: pool}
}

func (r *callbackRepo) Create(ctx context.Context, d *domain.CallbackDelivery) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO callback_deliveries
		(id, payment_id, merchant_id, url, payload, http_status, attempt, status, last_error, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.PaymentID, d.MerchantID, d.URL, d.Payload,
		d.HTTPStatus, d.Attempt, string(d.Status), d.LastError, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert callback delivery: %w", err)
	}
	return nil
}

func (r *callbackRepo) UpdateAttempt(ctx context.Context, d *domain.CallbackDelivery) error {
	d.UpdatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx,
		`UPDATE callback_deliveries
		 SET http_status=$1, attempt=$2, status=$3, last_error=$4, updated_at=$5
		 WHERE id=$6`,
		d.HTTPStatus, d.Attempt, string(d.Status), d.LastError, d.UpdatedAt, d.ID,
	)
	if err != nil {
		return fmt.Errorf("update callback delivery: %w", err)
	}
	return nil
}
