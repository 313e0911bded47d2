package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// API key plaintext layout: qgw_sk_<mode>_<48 hex chars>.
const (
	apiKeyPrefix      = "qgw_sk_"
	apiKeySecretBytes = 24
	apiKeyShownChars  = 8 // secret chars kept in KeyPrefix for display
)

// APIKeyServiceImpl implements ports.APIKeyService.
type APIKeyServiceImpl struct {
	keyRepo      ports.APIKeyRepository
	merchantRepo ports.MerchantRepository
	log          zerolog.Logger
}

// NewAPIKeyService creates a new APIKeyServiceImpl.
func NewAPIKeyService(keyRepo ports.APIKeyRepository, merchantRepo ports.MerchantRepository, log zerolog.Logger) *APIKeyServiceImpl {
	return &APIKeyServiceImpl{keyRepo: keyRepo, merchantRepo: merchantRepo, log: log}
}

// Create issues a new key for merchantID. The plaintext is returned once.
func (s *APIKeyServiceImpl) Create(ctx context.Context, merchantID uuid.UUID, name string, mode domain.Mode) (*ports.IssuedAPIKey, error) {
	if !mode.IsValid() {
		return nil, apperror.Validation("mode must be sandbox or live")
	}
	issued, err := issueAPIKey(ctx, s.keyRepo, nil, merchantID, name, mode)
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("merchant_id", merchantID.String()).
		Str("key_id", issued.Key.ID.String()).
		Str("mode", string(mode)).
		Msg("api key created")
	return issued, nil
}

// issueAPIKey generates and persists a key. tx may be nil.
func issueAPIKey(ctx context.Context, repo ports.APIKeyRepository, tx pgx.Tx, merchantID uuid.UUID, name string, mode domain.Mode) (*ports.IssuedAPIKey, error) {
	plaintext, err := generateAPIKey(mode)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate api key: %w", err))
	}
	if name == "" {
		name = string(mode)
	}

	key := &domain.APIKey{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Name:       name,
		KeyPrefix:  displayPrefix(plaintext, mode),
		KeyHash:    hashAPIKey(plaintext),
		Mode:       mode,
		IsActive:   true,
		CreatedAt:  time.Now().UTC(),
	}
	if err := repo.Create(ctx, tx, key); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create api key: %w", err))
	}
	return &ports.IssuedAPIKey{Key: key, Plaintext: plaintext}, nil
}

func (s *APIKeyServiceImpl) List(ctx context.Context, merchantID uuid.UUID) ([]domain.APIKey, error) {
	keys, err := s.keyRepo.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list api keys: %w", err))
	}
	return keys, nil
}

// Revoke deactivates a key. Keys are never deleted because intents keep
// a reference to the key that created them.
func (s *APIKeyServiceImpl) Revoke(ctx context.Context, merchantID, keyID uuid.UUID) error {
	found, err := s.keyRepo.Deactivate(ctx, keyID, merchantID)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("deactivate api key: %w", err))
	}
	if !found {
		return apperror.ErrNotFound("API key")
	}
	s.log.Info().Str("merchant_id", merchantID.String()).Str("key_id", keyID.String()).Msg("api key revoked")
	return nil
}

// Authenticate resolves a plaintext key into the caller it acts for.
func (s *APIKeyServiceImpl) Authenticate(ctx context.Context, plaintext string) (*domain.Caller, error) {
	if _, ok := parseAPIKeyMode(plaintext); !ok {
		return nil, apperror.ErrInvalidAPIKey()
	}

	key, err := s.keyRepo.GetByHash(ctx, hashAPIKey(plaintext))
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup api key: %w", err))
	}
	if key == nil {
		return nil, apperror.ErrInvalidAPIKey()
	}
	if !key.IsActive {
		return nil, apperror.ErrAPIKeyInactive()
	}

	merchant, err := s.merchantRepo.GetByID(ctx, key.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lookup merchant: %w", err))
	}
	if merchant == nil {
		return nil, apperror.ErrInvalidAPIKey()
	}
	if !merchant.IsActive() {
		return nil, apperror.ErrMerchantSuspended()
	}

	// Usage tracking must not fail the request.
	if err := s.keyRepo.TouchUsage(ctx, key.ID, time.Now().UTC()); err != nil {
		s.log.Warn().Err(err).Str("key_id", key.ID.String()).Msg("failed to record api key usage")
	}

	return &domain.Caller{APIKeyID: key.ID, MerchantID: key.MerchantID, Mode: key.Mode}, nil
}

func generateAPIKey(mode domain.Mode) (string, error) {
	secret, err := generateRandomHex(apiKeySecretBytes)
	if err != nil {
		return "", err
	}
	return apiKeyPrefix + modeTag(mode) + "_" + secret, nil
}

func modeTag(mode domain.Mode) string {
	if mode == domain.ModeLive {
		return "live"
	}
	return "test"
}

// parseAPIKeyMode checks the plaintext layout and returns the mode it encodes.
func parseAPIKeyMode(plaintext string) (domain.Mode, bool) {
	rest, ok := strings.CutPrefix(plaintext, apiKeyPrefix)
	if !ok {
		return "", false
	}
	tag, secret, ok := strings.Cut(rest, "_")
	if !ok || len(secret) != apiKeySecretBytes*2 {
		return "", false
	}
	if _, err := hex.DecodeString(secret); err != nil {
		return "", false
	}
	switch tag {
	case "test":
		return domain.ModeSandbox, true
	case "live":
		return domain.ModeLive, true
	}
	return "", false
}

func displayPrefix(plaintext string, mode domain.Mode) string {
	n := len(apiKeyPrefix) + len(modeTag(mode)) + 1 + apiKeyShownChars
	return plaintext[:n]
}

func hashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// generateRandomHex generates a random hex string of n bytes.
func generateRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
