package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
	"qris-gateway/internal/core/ports/mocks"
	"qris-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	committed bool
}

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

type authDeps struct {
	merchantRepo *mocks.MockMerchantRepository
	keyRepo      *mocks.MockAPIKeyRepository
	transactor   *mocks.MockDBTransactor
	hashSvc      *mocks.MockHashService
	encSvc       *mocks.MockEncryptionService
	tokenSvc     *mocks.MockTokenService
}

func setupAuthService(t *testing.T) (*AuthServiceImpl, authDeps) {
	ctrl := gomock.NewController(t)
	d := authDeps{
		merchantRepo: mocks.NewMockMerchantRepository(ctrl),
		keyRepo:      mocks.NewMockAPIKeyRepository(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		hashSvc:      mocks.NewMockHashService(ctrl),
		encSvc:       mocks.NewMockEncryptionService(ctrl),
		tokenSvc:     mocks.NewMockTokenService(ctrl),
	}
	svc := NewAuthService(d.merchantRepo, d.keyRepo, d.transactor, d.hashSvc, d.encSvc, d.tokenSvc, zerolog.Nop())
	return svc, d
}

func TestAuthService_Register_Success(t *testing.T) {
	svc, d := setupAuthService(t)
	ctx := context.Background()
	tx := &mockTx{}
	req := ports.RegisterRequest{Username: "warung_kopi", Password: "StrongP@ss123", MerchantName: "Warung Kopi"}

	var storedMerchant *domain.Merchant
	var storedKey *domain.APIKey

	d.merchantRepo.EXPECT().GetByUsername(ctx, req.Username).Return(nil, nil)
	d.hashSvc.EXPECT().Hash(req.Password).Return("$argon2id$hashed", nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("encrypted_secret", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.merchantRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, m *domain.Merchant) error {
			storedMerchant = m
			return nil
		})
	d.keyRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, k *domain.APIKey) error {
			storedKey = k
			return nil
		})

	resp, err := svc.Register(ctx, req)
	require.NoError(t, err)

	assert.True(t, tx.committed)
	assert.Equal(t, storedMerchant.ID, resp.MerchantID)
	assert.Equal(t, "encrypted_secret", storedMerchant.CallbackSecretEnc)
	assert.Equal(t, domain.MerchantStatusActive, storedMerchant.Status)
	assert.Len(t, resp.CallbackSecret, 64)

	assert.True(t, strings.HasPrefix(resp.SandboxAPIKey, "qgw_sk_test_"))
	assert.Equal(t, domain.ModeSandbox, storedKey.Mode)
	assert.Equal(t, storedMerchant.ID, storedKey.MerchantID)
	assert.Equal(t, hashAPIKey(resp.SandboxAPIKey), storedKey.KeyHash)
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	svc, d := setupAuthService(t)
	ctx := context.Background()
	req := ports.RegisterRequest{Username: "existing_user", Password: "password1", MerchantName: "Shop"}

	d.merchantRepo.EXPECT().GetByUsername(ctx, req.Username).Return(&domain.Merchant{Username: "existing_user"}, nil)

	resp, err := svc.Register(ctx, req)
	assert.Nil(t, resp)
	assertAppCode(t, err, apperror.CodeUsernameExists)
}

func TestAuthService_Register_LostUsernameRace(t *testing.T) {
	svc, d := setupAuthService(t)
	ctx := context.Background()
	tx := &mockTx{}
	req := ports.RegisterRequest{Username: "racer", Password: "password1", MerchantName: "Shop"}

	d.merchantRepo.EXPECT().GetByUsername(ctx, req.Username).Return(nil, nil)
	d.hashSvc.EXPECT().Hash(req.Password).Return("hash", nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("enc", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.merchantRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(domain.ErrDuplicateUsername)

	_, err := svc.Register(ctx, req)
	assertAppCode(t, err, apperror.CodeUsernameExists)
	assert.False(t, tx.committed)
}

func TestAuthService_Register_KeyFailureRollsBack(t *testing.T) {
	svc, d := setupAuthService(t)
	ctx := context.Background()
	tx := &mockTx{}
	req := ports.RegisterRequest{Username: "shop", Password: "password1", MerchantName: "Shop"}

	d.merchantRepo.EXPECT().GetByUsername(ctx, req.Username).Return(nil, nil)
	d.hashSvc.EXPECT().Hash(req.Password).Return("hash", nil)
	d.encSvc.EXPECT().Encrypt(gomock.Any()).Return("enc", nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.merchantRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.keyRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(errors.New("disk full"))

	_, err := svc.Register(ctx, req)
	assertAppCode(t, err, apperror.CodeInternal)
	assert.False(t, tx.committed)
}

func TestAuthService_Login_Success(t *testing.T) {
	svc, d := setupAuthService(t)
	ctx := context.Background()
	merchant := &domain.Merchant{
		ID:           uuid.New(),
		Username:     "test_user",
		PasswordHash: "$argon2id$hashed",
		Status:       domain.MerchantStatusActive,
	}

	d.merchantRepo.EXPECT().GetByUsername(ctx, "test_user").Return(merchant, nil)
	d.hashSvc.EXPECT().Verify("correct_password", "$argon2id$hashed").Return(true, nil)
	d.tokenSvc.EXPECT().Generate(merchant.ID, "test_user").Return("jwt_token_here", time.Now().Add(24*time.Hour), nil)

	token, _, err := svc.Login(ctx, "test_user", "correct_password")
	require.NoError(t, err)
	assert.Equal(t, "jwt_token_here", token)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	svc, d := setupAuthService(t)
	ctx := context.Background()

	d.merchantRepo.EXPECT().GetByUsername(ctx, "nonexistent").Return(nil, nil)

	_, _, err := svc.Login(ctx, "nonexistent", "password")
	assertAppCode(t, err, apperror.CodeInvalidCredentials)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, d := setupAuthService(t)
	ctx := context.Background()
	merchant := &domain.Merchant{ID: uuid.New(), Username: "test_user", PasswordHash: "$argon2id$hashed", Status: domain.MerchantStatusActive}

	d.merchantRepo.EXPECT().GetByUsername(ctx, "test_user").Return(merchant, nil)
	d.hashSvc.EXPECT().Verify("wrong_password", "$argon2id$hashed").Return(false, nil)

	_, _, err := svc.Login(ctx, "test_user", "wrong_password")
	assertAppCode(t, err, apperror.CodeInvalidCredentials)
}

func TestAuthService_Login_MerchantSuspended(t *testing.T) {
	svc, d := setupAuthService(t)
	ctx := context.Background()
	merchant := &domain.Merchant{ID: uuid.New(), Username: "test_user", PasswordHash: "$argon2id$hashed", Status: domain.MerchantStatusSuspended}

	d.merchantRepo.EXPECT().GetByUsername(ctx, "test_user").Return(merchant, nil)
	d.hashSvc.EXPECT().Verify("correct_password", "$argon2id$hashed").Return(true, nil)

	_, _, err := svc.Login(ctx, "test_user", "correct_password")
	assertAppCode(t, err, apperror.CodeMerchantSuspended)
}
