package postgres

import (
	"context"
	"fmt"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"

	"github.com/google/uuid"
)

type webhookLogRepo struct {
	pool Pool
}

// NewWebhookLogRepository creates a PostgreSQL-backed WebhookLogRepository.
func NewWebhookLogRepository(pool Pool) ports.WebhookLogRepository {
	return &webhookLogRepo{pool: pool}
}

func (r *webhookLogRepo) Create(ctx context.Context, l *domain.WebhookLog) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO webhook_logs
		(id, provider, stage, event_type, payment_id, payment_ref, payload, signature, verified, outcome, error, created_at, processed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		l.ID, l.Provider, string(l.Stage), l.EventType, l.PaymentID, l.PaymentRef,
		l.Payload, l.Signature, l.Verified, l.Outcome, l.Error, l.CreatedAt, l.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook log: %w", err)
	}
	return nil
}

// MarkProcessed stamps processed_at once; later calls are no-ops.
func (r *webhookLogRepo) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE webhook_logs SET processed_at = $1 WHERE id = $2 AND processed_at IS NULL`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	return nil
}

func (r *webhookLogRepo) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]domain.WebhookLog, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, provider, stage, event_type, payment_id, payment_ref, payload, signature,
		verified, outcome, error, created_at, processed_at
		 FROM webhook_logs
		 WHERE payment_id = $1
		 ORDER BY created_at`, paymentID)
	if err != nil {
		return nil, fmt.Errorf("list webhook logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.WebhookLog
	for rows.Next() {
		var l domain.WebhookLog
		var stage string
		if err := rows.Scan(
			&l.ID, &l.Provider, &stage, &l.EventType, &l.PaymentID, &l.PaymentRef, &l.Payload, &l.Signature,
			&l.Verified, &l.Outcome, &l.Error, &l.CreatedAt, &l.ProcessedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook log: %w", err)
		}
		l.Stage = domain.WebhookStage(stage)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
