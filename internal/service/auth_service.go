package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const callbackSecretBytes = 32

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	merchantRepo ports.MerchantRepository
	keyRepo      ports.APIKeyRepository
	transactor   ports.DBTransactor
	hashSvc      ports.HashService
	encSvc       ports.EncryptionService
	tokenSvc     ports.TokenService
	log          zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	merchantRepo ports.MerchantRepository,
	keyRepo ports.APIKeyRepository,
	transactor ports.DBTransactor,
	hashSvc ports.HashService,
	encSvc ports.EncryptionService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		merchantRepo: merchantRepo,
		keyRepo:      keyRepo,
		transactor:   transactor,
		hashSvc:      hashSvc,
		encSvc:       encSvc,
		tokenSvc:     tokenSvc,
		log:          log,
	}
}

// Register creates a merchant together with its first sandbox API key.
// The key plaintext and callback secret are returned only once.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.RegisterResponse, error) {
	existing, err := s.merchantRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	callbackSecret, err := generateRandomHex(callbackSecretBytes)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate callback secret: %w", err))
	}
	callbackSecretEnc, err := s.encSvc.Encrypt(callbackSecret)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(err)
	}

	now := time.Now().UTC()
	merchant := &domain.Merchant{
		ID:                uuid.New(),
		Username:          req.Username,
		PasswordHash:      passwordHash,
		MerchantName:      req.MerchantName,
		CallbackSecretEnc: callbackSecretEnc,
		Status:            domain.MerchantStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := s.merchantRepo.Create(ctx, tx, merchant); err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			return nil, apperror.ErrUsernameExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create merchant: %w", err))
	}

	issued, err := issueAPIKey(ctx, s.keyRepo, tx, merchant.ID, "default sandbox", domain.ModeSandbox)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().Str("merchant_id", merchant.ID.String()).Str("username", merchant.Username).Msg("merchant registered")

	return &ports.RegisterResponse{
		MerchantID:     merchant.ID,
		SandboxAPIKey:  issued.Plaintext,
		CallbackSecret: callbackSecret,
	}, nil
}

// Login validates credentials and returns a dashboard JWT.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	merchant, err := s.merchantRepo.GetByUsername(ctx, username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find merchant: %w", err))
	}
	if merchant == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, merchant.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	if !merchant.IsActive() {
		return "", time.Time{}, apperror.ErrMerchantSuspended()
	}

	token, expiry, err := s.tokenSvc.Generate(merchant.ID, merchant.Username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	return token, expiry, nil
}
