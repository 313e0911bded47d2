package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports/mocks"
	"qris-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupAPIKeyService(t *testing.T) (*APIKeyServiceImpl, *mocks.MockAPIKeyRepository, *mocks.MockMerchantRepository) {
	ctrl := gomock.NewController(t)
	keyRepo := mocks.NewMockAPIKeyRepository(ctrl)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	return NewAPIKeyService(keyRepo, merchantRepo, zerolog.Nop()), keyRepo, merchantRepo
}

func assertAppCode(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

func TestAPIKeyService_Create(t *testing.T) {
	svc, keyRepo, _ := setupAPIKeyService(t)
	ctx := context.Background()
	merchantID := uuid.New()

	var stored *domain.APIKey
	keyRepo.EXPECT().Create(ctx, gomock.Nil(), gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, k *domain.APIKey) error {
			stored = k
			return nil
		})

	issued, err := svc.Create(ctx, merchantID, "checkout", domain.ModeLive)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(issued.Plaintext, "qgw_sk_live_"))
	assert.Len(t, issued.Plaintext, len("qgw_sk_live_")+48)
	assert.Equal(t, hashAPIKey(issued.Plaintext), stored.KeyHash)
	assert.NotContains(t, stored.KeyHash, issued.Plaintext)
	assert.Equal(t, issued.Plaintext[:20], stored.KeyPrefix)
	assert.Equal(t, domain.ModeLive, stored.Mode)
	assert.True(t, stored.IsActive)
}

func TestAPIKeyService_Create_InvalidMode(t *testing.T) {
	svc, _, _ := setupAPIKeyService(t)

	_, err := svc.Create(context.Background(), uuid.New(), "x", domain.Mode("staging"))
	assertAppCode(t, err, apperror.CodeValidation)
}

func TestAPIKeyService_Authenticate(t *testing.T) {
	ctx := context.Background()
	plaintext, err := generateAPIKey(domain.ModeSandbox)
	require.NoError(t, err)
	merchantID := uuid.New()
	key := &domain.APIKey{ID: uuid.New(), MerchantID: merchantID, Mode: domain.ModeSandbox, IsActive: true}

	t.Run("valid key", func(t *testing.T) {
		svc, keyRepo, merchantRepo := setupAPIKeyService(t)
		keyRepo.EXPECT().GetByHash(ctx, hashAPIKey(plaintext)).Return(key, nil)
		merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(&domain.Merchant{ID: merchantID, Status: domain.MerchantStatusActive}, nil)
		keyRepo.EXPECT().TouchUsage(ctx, key.ID, gomock.Any()).Return(nil)

		caller, err := svc.Authenticate(ctx, plaintext)
		require.NoError(t, err)
		assert.Equal(t, merchantID, caller.MerchantID)
		assert.Equal(t, key.ID, caller.APIKeyID)
		assert.True(t, caller.IsSandbox())
	})

	t.Run("usage tracking failure is ignored", func(t *testing.T) {
		svc, keyRepo, merchantRepo := setupAPIKeyService(t)
		keyRepo.EXPECT().GetByHash(ctx, gomock.Any()).Return(key, nil)
		merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(&domain.Merchant{ID: merchantID, Status: domain.MerchantStatusActive}, nil)
		keyRepo.EXPECT().TouchUsage(ctx, key.ID, gomock.Any()).Return(errors.New("timeout"))

		_, err := svc.Authenticate(ctx, plaintext)
		assert.NoError(t, err)
	})

	t.Run("malformed key never hits storage", func(t *testing.T) {
		svc, _, _ := setupAPIKeyService(t)
		for _, bad := range []string{"", "abc", "qgw_sk_prod_" + strings.Repeat("a", 48), "qgw_sk_test_zz"} {
			_, err := svc.Authenticate(ctx, bad)
			assertAppCode(t, err, apperror.CodeInvalidAPIKey)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		svc, keyRepo, _ := setupAPIKeyService(t)
		keyRepo.EXPECT().GetByHash(ctx, gomock.Any()).Return(nil, nil)

		_, err := svc.Authenticate(ctx, plaintext)
		assertAppCode(t, err, apperror.CodeInvalidAPIKey)
	})

	t.Run("inactive key", func(t *testing.T) {
		svc, keyRepo, _ := setupAPIKeyService(t)
		inactive := *key
		inactive.IsActive = false
		keyRepo.EXPECT().GetByHash(ctx, gomock.Any()).Return(&inactive, nil)

		_, err := svc.Authenticate(ctx, plaintext)
		assertAppCode(t, err, apperror.CodeAPIKeyInactive)
	})

	t.Run("suspended merchant", func(t *testing.T) {
		svc, keyRepo, merchantRepo := setupAPIKeyService(t)
		keyRepo.EXPECT().GetByHash(ctx, gomock.Any()).Return(key, nil)
		merchantRepo.EXPECT().GetByID(ctx, merchantID).Return(&domain.Merchant{ID: merchantID, Status: domain.MerchantStatusSuspended}, nil)

		_, err := svc.Authenticate(ctx, plaintext)
		assertAppCode(t, err, apperror.CodeMerchantSuspended)
	})
}

func TestAPIKeyService_Revoke(t *testing.T) {
	svc, keyRepo, _ := setupAPIKeyService(t)
	ctx := context.Background()
	merchantID, keyID := uuid.New(), uuid.New()

	keyRepo.EXPECT().Deactivate(ctx, keyID, merchantID).Return(true, nil)
	require.NoError(t, svc.Revoke(ctx, merchantID, keyID))

	keyRepo.EXPECT().Deactivate(ctx, keyID, merchantID).Return(false, nil)
	assertAppCode(t, svc.Revoke(ctx, merchantID, keyID), apperror.CodeNotFound)
}

func TestParseAPIKeyMode(t *testing.T) {
	live, _ := generateAPIKey(domain.ModeLive)
	mode, ok := parseAPIKeyMode(live)
	require.True(t, ok)
	assert.Equal(t, domain.ModeLive, mode)

	test, _ := generateAPIKey(domain.ModeSandbox)
	mode, ok = parseAPIKeyMode(test)
	require.True(t, ok)
	assert.Equal(t, domain.ModeSandbox, mode)
}
