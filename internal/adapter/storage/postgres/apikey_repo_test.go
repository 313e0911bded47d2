package postgres

import (
	"context"
	"testing"
	"time"

	"qris-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPIKey() *domain.APIKey {
	return &domain.APIKey{
		ID:         uuid.New(),
		MerchantID: uuid.New(),
		Name:       "checkout",
		KeyPrefix:  "qgw_sk_test_1a2b3c4d",
		KeyHash:    "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		Mode:       domain.ModeSandbox,
		IsActive:   true,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func apiKeyRows(keys ...*domain.APIKey) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "merchant_id", "name", "key_prefix", "key_hash", "mode",
		"is_active", "usage_count", "last_used_at", "created_at"})
	for _, k := range keys {
		rows.AddRow(k.ID, k.MerchantID, k.Name, k.KeyPrefix, k.KeyHash, k.Mode,
			k.IsActive, k.UsageCount, k.LastUsedAt, k.CreatedAt)
	}
	return rows
}

func TestAPIKeyRepo_Create_WithoutTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	k := newTestAPIKey()
	mock.ExpectExec("INSERT INTO api_keys").
		WithArgs(k.ID, k.MerchantID, k.Name, k.KeyPrefix, k.KeyHash, k.Mode,
			k.IsActive, k.UsageCount, k.LastUsedAt, k.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, NewAPIKeyRepo(mock).Create(context.Background(), nil, k))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_GetByHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAPIKeyRepo(mock)
	k := newTestAPIKey()

	mock.ExpectQuery("SELECT .+ FROM api_keys WHERE key_hash").
		WithArgs(k.KeyHash).
		WillReturnRows(apiKeyRows(k))
	mock.ExpectQuery("SELECT .+ FROM api_keys WHERE key_hash").
		WithArgs("missing").
		WillReturnRows(apiKeyRows())

	found, err := repo.GetByHash(context.Background(), k.KeyHash)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.ModeSandbox, found.Mode)

	missing, err := repo.GetByHash(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_ListByMerchant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	k1, k2 := newTestAPIKey(), newTestAPIKey()
	k2.MerchantID = k1.MerchantID

	mock.ExpectQuery("SELECT .+ FROM api_keys WHERE merchant_id").
		WithArgs(k1.MerchantID).
		WillReturnRows(apiKeyRows(k1, k2))

	keys, err := NewAPIKeyRepo(mock).ListByMerchant(context.Background(), k1.MerchantID)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyRepo_DeactivateAndTouch(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAPIKeyRepo(mock)
	id, merchantID := uuid.New(), uuid.New()
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE api_keys SET is_active = FALSE").
		WithArgs(id, merchantID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("UPDATE api_keys SET usage_count = usage_count \\+ 1").
		WithArgs(at, id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.Deactivate(context.Background(), id, merchantID)
	require.NoError(t, err)
	assert.False(t, ok, "foreign or unknown key is not deactivated")

	assert.NoError(t, repo.TouchUsage(context.Background(), id, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
