// Package memory is a process-local storage backend. It enforces the same
// unique constraints and compare-and-set transitions as the postgres
// backend and is used for local sandbox runs and end-to-end tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"

	"github.com/google/uuid"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	mu         sync.RWMutex
	payments   map[uuid.UUID]*domain.PaymentIntent
	byExternal map[string]uuid.UUID
	byIdemKey  map[string]uuid.UUID
}

func NewPaymentRepo() *PaymentRepo {
	return &PaymentRepo{
		payments:   make(map[uuid.UUID]*domain.PaymentIntent),
		byExternal: make(map[string]uuid.UUID),
		byIdemKey:  make(map[string]uuid.UUID),
	}
}

func (r *PaymentRepo) Create(ctx context.Context, p *domain.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byExternal[p.ExternalID]; ok {
		return domain.ErrDuplicateExternalID
	}
	if p.IdempotencyKey != nil {
		if _, ok := r.byIdemKey[*p.IdempotencyKey]; ok {
			return domain.ErrDuplicateIdempotencyKey
		}
		r.byIdemKey[*p.IdempotencyKey] = p.ID
	}
	r.byExternal[p.ExternalID] = p.ID
	cp := *p
	r.payments[p.ID] = &cp
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.copyOf(id), nil
}

func (r *PaymentRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.PaymentIntent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byExternal[externalID]
	if !ok {
		return nil, nil
	}
	return r.copyOf(id), nil
}

func (r *PaymentRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.PaymentIntent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byIdemKey[key]
	if !ok {
		return nil, nil
	}
	return r.copyOf(id), nil
}

func (r *PaymentRepo) GetByProviderRef(ctx context.Context, providerRef string) (*domain.PaymentIntent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, p := range r.payments {
		if p.ProviderRef != nil && *p.ProviderRef == providerRef {
			return r.copyOf(id), nil
		}
	}
	return nil, nil
}

// List returns a merchant's intents, newest first.
func (r *PaymentRepo) List(ctx context.Context, params ports.PaymentListParams) ([]domain.PaymentIntent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.PaymentIntent
	for _, p := range r.payments {
		if p.MerchantID != params.MerchantID {
			continue
		}
		if params.Status != nil && p.Status != *params.Status {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if params.Limit > 0 && len(result) > params.Limit {
		result = result[:params.Limit]
	}
	return result, nil
}

// TransitionStatus applies update only while the intent is still pending.
func (r *PaymentRepo) TransitionStatus(ctx context.Context, update domain.StatusUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[update.ID]
	if !ok || p.Status != domain.PaymentStatusPending {
		return false, nil
	}
	p.Status = update.Status
	if update.ProviderStatus != nil {
		s := *update.ProviderStatus
		p.ProviderStatus = &s
	}
	p.PaidAt = update.PaidAt
	p.UpdatedAt = update.UpdatedAt
	return true, nil
}

func (r *PaymentRepo) RecordProviderStatus(ctx context.Context, id uuid.UUID, providerStatus string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[id]; ok {
		p.ProviderStatus = &providerStatus
		p.UpdatedAt = at
	}
	return nil
}

func (r *PaymentRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.PaymentIntent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.PaymentIntent
	for _, p := range r.payments {
		if p.IsOverdue(now) {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(result[j].ExpiresAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *PaymentRepo) GetStats(ctx context.Context, merchantID uuid.UUID, since *time.Time) (*ports.PaymentStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := &ports.PaymentStats{}
	for _, p := range r.payments {
		if p.MerchantID != merchantID {
			continue
		}
		if since != nil && p.CreatedAt.Before(*since) {
			continue
		}
		stats.Total++
		switch p.Status {
		case domain.PaymentStatusPending:
			stats.Pending++
		case domain.PaymentStatusPaid:
			stats.Paid++
			stats.GrossPaid += p.Amount
			stats.FeePaid += p.FeeAmount
			stats.NetPaid += p.NetAmount
		case domain.PaymentStatusExpired:
			stats.Expired++
		case domain.PaymentStatusFailed:
			stats.Failed++
		case domain.PaymentStatusCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

// copyOf must be called with r.mu held.
func (r *PaymentRepo) copyOf(id uuid.UUID) *domain.PaymentIntent {
	p, ok := r.payments[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}
