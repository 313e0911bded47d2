package postgres

import (
	"context"
	"errors"
	"fmt"

	"qris-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const merchantColumns = `id, username, password_hash, merchant_name, callback_secret_enc, status, created_at, updated_at`

// execer is satisfied by both Pool and pgx.Tx.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// MerchantRepo implements ports.MerchantRepository.
type MerchantRepo struct {
	pool Pool
}

// NewMerchantRepo creates a new MerchantRepo.
func NewMerchantRepo(pool Pool) *MerchantRepo {
	return &MerchantRepo{pool: pool}
}

// Create inserts a new merchant, inside tx when one is given.
func (r *MerchantRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.Merchant) error {
	query := `INSERT INTO merchants (` + merchantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	var db execer = r.pool
	if tx != nil {
		db = tx
	}
	_, err := db.Exec(ctx, query,
		m.ID, m.Username, m.PasswordHash, m.MerchantName,
		m.CallbackSecretEnc, m.Status, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if uniqueViolation(err) == "merchants_username_key" {
			return domain.ErrDuplicateUsername
		}
		return fmt.Errorf("insert merchant: %w", err)
	}
	return nil
}

// GetByID fetches a merchant by its UUID.
func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE id = $1`

	m, err := scanMerchant(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get merchant by id: %w", err)
	}
	return m, nil
}

// GetByUsername fetches a merchant by username.
func (r *MerchantRepo) GetByUsername(ctx context.Context, username string) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE username = $1`

	m, err := scanMerchant(r.pool.QueryRow(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("get merchant by username: %w", err)
	}
	return m, nil
}

// UpdateCallbackSecret replaces the encrypted callback signing secret.
func (r *MerchantRepo) UpdateCallbackSecret(ctx context.Context, id uuid.UUID, secretEnc string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE merchants SET callback_secret_enc = $1, updated_at = NOW() WHERE id = $2`,
		secretEnc, id,
	)
	if err != nil {
		return fmt.Errorf("update callback secret: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant not found: %s", id)
	}
	return nil
}

func scanMerchant(row pgx.Row) (*domain.Merchant, error) {
	m := &domain.Merchant{}
	err := row.Scan(
		&m.ID, &m.Username, &m.PasswordHash, &m.MerchantName,
		&m.CallbackSecretEnc, &m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}
