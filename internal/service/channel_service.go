package service

import (
	"context"
	"fmt"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// ChannelServiceImpl implements ports.ChannelService.
type ChannelServiceImpl struct {
	repo ports.ChannelRepository
	log  zerolog.Logger
}

// NewChannelService creates the payment channel registry.
func NewChannelService(repo ports.ChannelRepository, log zerolog.Logger) *ChannelServiceImpl {
	return &ChannelServiceImpl{repo: repo, log: log}
}

// Seed inserts the default catalog rows that do not exist yet. Existing
// rows, including deactivated ones, are left untouched.
func (s *ChannelServiceImpl) Seed(ctx context.Context) (int, error) {
	added, err := s.repo.Seed(ctx, domain.DefaultChannels())
	if err != nil {
		return 0, fmt.Errorf("seed channels: %w", err)
	}
	if added > 0 {
		s.log.Info().Int("added", added).Msg("payment channels seeded")
	}
	return added, nil
}

// Resolve returns the channel for code. A code with no registry row
// resolves to nil so callers fall back to domain.DefaultFeeSchedule.
// An inactive channel is rejected.
func (s *ChannelServiceImpl) Resolve(ctx context.Context, code string) (*domain.PaymentChannel, error) {
	ch, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get channel: %w", err))
	}
	if ch == nil {
		return nil, nil
	}
	if !ch.IsActive {
		return nil, apperror.ErrChannelInactive(code)
	}
	return ch, nil
}

func (s *ChannelServiceImpl) ListActive(ctx context.Context) ([]domain.PaymentChannel, error) {
	channels, err := s.repo.List(ctx, true)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list channels: %w", err))
	}
	return channels, nil
}

func (s *ChannelServiceImpl) List(ctx context.Context) ([]domain.PaymentChannel, error) {
	channels, err := s.repo.List(ctx, false)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list channels: %w", err))
	}
	return channels, nil
}

// SetActive toggles a channel. In-flight intents on the channel keep
// their state; only new intents are blocked.
func (s *ChannelServiceImpl) SetActive(ctx context.Context, code string, active bool) error {
	found, err := s.repo.SetActive(ctx, code, active)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("set channel active: %w", err))
	}
	if !found {
		return apperror.ErrNotFound("payment channel")
	}
	s.log.Info().Str("channel", code).Bool("active", active).Msg("payment channel updated")
	return nil
}
