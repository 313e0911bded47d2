package postgres

import (
	"context"
	"testing"
	"time"

	"qris-gateway/internal/core/domain"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func channelColumnNames() []string {
	return []string{"code", "name", "type", "is_active", "fee_basis_points", "fee_flat",
		"min_amount", "max_amount", "sort_order", "created_at", "updated_at"}
}

func channelRow(rows *pgxmock.Rows, c domain.PaymentChannel) *pgxmock.Rows {
	now := time.Now().UTC()
	return rows.AddRow(c.Code, c.Name, c.Type, c.IsActive, c.Fee.BasisPoints, c.Fee.Flat,
		c.MinAmount, c.MaxAmount, c.SortOrder, now, now)
}

func TestChannelRepo_Seed_CountsInsertedRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	channels := domain.DefaultChannels()[:3]
	mock.ExpectExec("INSERT INTO payment_channels .+ ON CONFLICT \\(code\\) DO NOTHING").
		WithArgs(channels[0].Code, pgxmock.AnyArg(), pgxmock.AnyArg(), true, int64(70), int64(0),
			pgxmock.AnyArg(), pgxmock.AnyArg(), 1, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO payment_channels").
		WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("INSERT INTO payment_channels").
		WithArgs(anyArgs(11)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := NewChannelRepo(mock).Seed(context.Background(), channels)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelRepo_GetByCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChannelRepo(mock)
	qris := domain.DefaultChannels()[0]

	mock.ExpectQuery("SELECT .+ FROM payment_channels WHERE code").
		WithArgs("QRIS").
		WillReturnRows(channelRow(pgxmock.NewRows(channelColumnNames()), qris))
	mock.ExpectQuery("SELECT .+ FROM payment_channels WHERE code").
		WithArgs("BITCOIN").
		WillReturnRows(pgxmock.NewRows(channelColumnNames()))

	c, err := repo.GetByCode(context.Background(), "QRIS")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(70), c.Fee.BasisPoints)
	assert.True(t, c.IsQR())

	missing, err := repo.GetByCode(context.Background(), "BITCOIN")
	assert.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelRepo_ListActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	channels := domain.DefaultChannels()
	rows := pgxmock.NewRows(channelColumnNames())
	channelRow(rows, channels[0])
	channelRow(rows, channels[1])

	mock.ExpectQuery("SELECT .+ FROM payment_channels WHERE is_active ORDER BY sort_order").
		WillReturnRows(rows)

	list, err := NewChannelRepo(mock).List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "QRIS", list[0].Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChannelRepo_SetActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewChannelRepo(mock)
	mock.ExpectExec("UPDATE payment_channels SET is_active").
		WithArgs(false, "OVO").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE payment_channels SET is_active").
		WithArgs(false, "NOPE").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := repo.SetActive(context.Background(), "OVO", false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetActive(context.Background(), "NOPE", false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
