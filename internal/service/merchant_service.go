package service

import (
	"context"
	"fmt"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"

	"github.com/google/uuid"
)

type merchantService struct {
	merchantRepo ports.MerchantRepository
	encSvc       ports.EncryptionService
}

// NewMerchantService creates a new merchant self-service.
func NewMerchantService(
	merchantRepo ports.MerchantRepository,
	encSvc ports.EncryptionService,
) ports.MerchantService {
	return &merchantService{
		merchantRepo: merchantRepo,
		encSvc:       encSvc,
	}
}

func (s *merchantService) GetProfile(ctx context.Context, merchantID uuid.UUID) (*domain.Merchant, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if merchant == nil {
		return nil, apperror.ErrNotFound("merchant")
	}
	return merchant, nil
}

// RotateCallbackSecret replaces the secret used to sign outbound callbacks
// and returns the new plaintext once.
func (s *merchantService) RotateCallbackSecret(ctx context.Context, merchantID uuid.UUID) (string, error) {
	merchant, err := s.merchantRepo.GetByID(ctx, merchantID)
	if err != nil {
		return "", apperror.InternalError(err)
	}
	if merchant == nil {
		return "", apperror.ErrNotFound("merchant")
	}

	secret, err := generateRandomHex(callbackSecretBytes)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("generate callback secret: %w", err))
	}
	enc, err := s.encSvc.Encrypt(secret)
	if err != nil {
		return "", apperror.ErrEncryptionFailure(err)
	}

	if err := s.merchantRepo.UpdateCallbackSecret(ctx, merchantID, enc); err != nil {
		return "", apperror.InternalError(err)
	}
	return secret, nil
}
