package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qris-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const channelColumns = `code, name, type, is_active, fee_basis_points, fee_flat,
	min_amount, max_amount, sort_order, created_at, updated_at`

// ChannelRepo implements ports.ChannelRepository.
type ChannelRepo struct {
	pool Pool
}

// NewChannelRepo creates a new ChannelRepo.
func NewChannelRepo(pool Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

// Seed inserts the catalog rows that are missing. Existing rows, including
// their active flag, are left untouched.
func (r *ChannelRepo) Seed(ctx context.Context, channels []domain.PaymentChannel) (int, error) {
	query := `INSERT INTO payment_channels (` + channelColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (code) DO NOTHING`

	now := time.Now().UTC()
	inserted := 0
	for _, c := range channels {
		tag, err := r.pool.Exec(ctx, query,
			c.Code, c.Name, c.Type, c.IsActive, c.Fee.BasisPoints, c.Fee.Flat,
			c.MinAmount, c.MaxAmount, c.SortOrder, now, now,
		)
		if err != nil {
			return inserted, fmt.Errorf("seed channel %s: %w", c.Code, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// GetByCode fetches a channel by code.
func (r *ChannelRepo) GetByCode(ctx context.Context, code string) (*domain.PaymentChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM payment_channels WHERE code = $1`

	c, err := scanChannel(r.pool.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return c, nil
}

// List returns channels in display order.
func (r *ChannelRepo) List(ctx context.Context, activeOnly bool) ([]domain.PaymentChannel, error) {
	query := `SELECT ` + channelColumns + ` FROM payment_channels`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY sort_order, code`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentChannel
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel rows: %w", err)
	}
	return out, nil
}

// SetActive toggles a channel. It reports false when the code is unknown.
func (r *ChannelRepo) SetActive(ctx context.Context, code string, active bool) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payment_channels SET is_active = $1, updated_at = NOW() WHERE code = $2`,
		active, code,
	)
	if err != nil {
		return false, fmt.Errorf("set channel active: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanChannel(row pgx.Row) (*domain.PaymentChannel, error) {
	c := &domain.PaymentChannel{}
	err := row.Scan(
		&c.Code, &c.Name, &c.Type, &c.IsActive, &c.Fee.BasisPoints, &c.Fee.Flat,
		&c.MinAmount, &c.MaxAmount, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
