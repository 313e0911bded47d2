package service

import (
	"context"
	"time"

	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"

	"github.com/google/uuid"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	paymentRepo ports.PaymentRepository
	now         func() time.Time
}

// NewReportingService creates a new reporting service.
func NewReportingService(paymentRepo ports.PaymentRepository) ports.ReportingService {
	return &reportingService{paymentRepo: paymentRepo, now: time.Now}
}

// GetDashboardStats returns aggregated payment stats for the merchant.
func (s *reportingService) GetDashboardStats(ctx context.Context, merchantID uuid.UUID, period string) (*ports.PaymentStats, error) {
	var since *time.Time
	now := s.now().UTC()

	switch period {
	case "day":
		t := now.AddDate(0, 0, -1)
		since = &t
	case "week":
		t := now.AddDate(0, 0, -7)
		since = &t
	case "month":
		t := now.AddDate(0, -1, 0)
		since = &t
	case "all", "":
		// No time filter
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}

	stats, err := s.paymentRepo.GetStats(ctx, merchantID, since)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}
