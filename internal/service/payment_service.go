package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	idempotencyTTL   = 24 * time.Hour
	defaultListLimit = 20
)

// Provider failure policies.
const (
	FailurePolicyStrict  = "strict"
	FailurePolicyLenient = "lenient"
)

// PaymentServiceOptions tunes the payment intent manager.
type PaymentServiceOptions struct {
	FailurePolicy string // strict or lenient
	ListMaxLimit  int

	// DefaultExpiryMinutes applies when a request omits expires_in_minutes.
	DefaultExpiryMinutes int
}

// PaymentServiceImpl implements ports.PaymentService.
type PaymentServiceImpl struct {
	paymentRepo ports.PaymentRepository
	channels    ports.ChannelService
	fees        ports.FeeCalculator
	qr          ports.QRGenerator
	provider    ports.PaymentProvider // nil in sandbox-only deployments
	idempCache  ports.IdempotencyCache
	publisher   ports.EventPublisher
	callbacks   ports.CallbackService
	opts        PaymentServiceOptions
	log         zerolog.Logger
	now         func() time.Time
}

// NewPaymentService creates a new PaymentServiceImpl. provider, idempCache,
// publisher and callbacks may be nil.
func NewPaymentService(
	paymentRepo ports.PaymentRepository,
	channels ports.ChannelService,
	fees ports.FeeCalculator,
	qr ports.QRGenerator,
	provider ports.PaymentProvider,
	idempCache ports.IdempotencyCache,
	publisher ports.EventPublisher,
	callbacks ports.CallbackService,
	opts PaymentServiceOptions,
	log zerolog.Logger,
) *PaymentServiceImpl {
	if opts.ListMaxLimit <= 0 {
		opts.ListMaxLimit = 100
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = FailurePolicyStrict
	}
	if opts.DefaultExpiryMinutes < domain.MinExpiryMinutes || opts.DefaultExpiryMinutes > domain.MaxExpiryMinutes {
		opts.DefaultExpiryMinutes = domain.DefaultExpiryMinutes
	}
	return &PaymentServiceImpl{
		paymentRepo: paymentRepo,
		channels:    channels,
		fees:        fees,
		qr:          qr,
		provider:    provider,
		idempCache:  idempCache,
		publisher:   publisher,
		callbacks:   callbacks,
		opts:        opts,
		log:         log,
		now:         time.Now,
	}
}

// Create implements intent creation: idempotent replay, external_id
// conflict, channel and fee resolution, provider or sandbox instructions,
// then persistence. Unique indexes are the final arbiter for both keys.
func (s *PaymentServiceImpl) Create(ctx context.Context, caller domain.Caller, req ports.CreatePaymentRequest) (*ports.CreatePaymentResult, error) {
	if req.ExpiresInMinutes == 0 {
		req.ExpiresInMinutes = s.opts.DefaultExpiryMinutes
	}
	if err := normalizeCreateRequest(&req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != nil {
		prior, err := s.findByIdempotencyKey(ctx, caller, *req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			return &ports.CreatePaymentResult{Payment: prior, Replayed: true}, nil
		}
	}

	existing, err := s.paymentRepo.GetByExternalID(ctx, req.ExternalID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check external_id: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrDuplicateExternalID(req.ExternalID)
	}

	schedule := domain.DefaultFeeSchedule
	channel, err := s.channels.Resolve(ctx, req.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if channel != nil {
		if req.Amount < channel.MinAmount || req.Amount > channel.MaxAmount {
			return nil, apperror.ErrAmountOutOfRange(channel.MinAmount, channel.MaxAmount)
		}
		schedule = channel.Fee
	}

	fee, net := s.fees.Calculate(req.Amount, schedule)
	if net <= 0 {
		return nil, apperror.Validation("amount does not cover the channel fee")
	}

	now := s.now().UTC()
	payment := &domain.PaymentIntent{
		ID:             uuid.New(),
		MerchantID:     caller.MerchantID,
		APIKeyID:       caller.APIKeyID,
		Mode:           caller.Mode,
		ExternalID:     req.ExternalID,
		IdempotencyKey: req.IdempotencyKey,
		Amount:         req.Amount,
		FeeAmount:      fee,
		NetAmount:      net,
		PaymentMethod:  req.PaymentMethod,
		Status:         domain.PaymentStatusPending,
		Description:    req.Description,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		CallbackURL:    req.CallbackURL,
		ExpiresAt:      now.Add(time.Duration(req.ExpiresInMinutes) * time.Minute),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.attachInstructions(ctx, caller, payment); err != nil {
		return nil, err
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateExternalID):
			return nil, apperror.ErrDuplicateExternalID(req.ExternalID)
		case errors.Is(err, domain.ErrDuplicateIdempotencyKey):
			// Lost the race to a concurrent retry; replay the winner.
			winner, findErr := s.findByIdempotencyKey(ctx, caller, *req.IdempotencyKey)
			if findErr != nil {
				return nil, findErr
			}
			if winner != nil {
				return &ports.CreatePaymentResult{Payment: winner, Replayed: true}, nil
			}
		}
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	if payment.IdempotencyKey != nil && s.idempCache != nil {
		record := domain.IdempotencyRecord{Key: *payment.IdempotencyKey, PaymentID: payment.ID, MerchantID: payment.MerchantID}
		if err := s.idempCache.Set(ctx, record, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("payment_id", payment.ID.String()).Msg("failed to cache idempotency key")
		}
	}

	s.publish(ctx, domain.EventPaymentCreated, payment)

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("merchant_id", payment.MerchantID.String()).
		Str("external_id", payment.ExternalID).
		Str("method", payment.PaymentMethod).
		Str("mode", string(payment.Mode)).
		Int64("amount", payment.Amount).
		Int64("fee", payment.FeeAmount).
		Msg("payment intent created")

	return &ports.CreatePaymentResult{Payment: payment}, nil
}

// normalizeCreateRequest applies defaults and validates bounds.
func normalizeCreateRequest(req *ports.CreatePaymentRequest) error {
	req.ExternalID = strings.TrimSpace(req.ExternalID)
	req.PaymentMethod = strings.ToUpper(strings.TrimSpace(req.PaymentMethod))
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.ChannelQRIS
	}
	if req.ExpiresInMinutes == 0 {
		req.ExpiresInMinutes = domain.DefaultExpiryMinutes
	}
	if req.IdempotencyKey != nil && strings.TrimSpace(*req.IdempotencyKey) == "" {
		req.IdempotencyKey = nil
	}

	fields := map[string]string{}
	if req.ExternalID == "" || len(req.ExternalID) > domain.MaxExternalIDLength {
		fields["external_id"] = fmt.Sprintf("must be 1-%d characters", domain.MaxExternalIDLength)
	}
	if !domain.IsSupportedMethod(req.PaymentMethod) {
		fields["payment_method"] = "must be one of " + strings.Join(domain.SupportedMethods(), ", ")
	}
	if req.ExpiresInMinutes < domain.MinExpiryMinutes || req.ExpiresInMinutes > domain.MaxExpiryMinutes {
		fields["expires_in_minutes"] = fmt.Sprintf("must be between %d and %d", domain.MinExpiryMinutes, domain.MaxExpiryMinutes)
	}
	if len(fields) > 0 {
		return apperror.ValidationFields(fields)
	}

	if req.Amount < domain.MinAmount || req.Amount > domain.MaxAmount {
		return apperror.ErrAmountOutOfRange(domain.MinAmount, domain.MaxAmount)
	}
	return nil
}

// findByIdempotencyKey returns the intent created with key, checking the
// cache before the payments table. A key owned by another merchant is a
// conflict rather than a replay.
func (s *PaymentServiceImpl) findByIdempotencyKey(ctx context.Context, caller domain.Caller, key string) (*domain.PaymentIntent, error) {
	if s.idempCache != nil {
		record, err := s.idempCache.Get(ctx, key)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("idempotency cache lookup failed, falling through to DB")
		}
		if record != nil {
			if record.MerchantID != caller.MerchantID {
				return nil, apperror.ErrIdempotencyKeyReused()
			}
			prior, err := s.paymentRepo.GetByID(ctx, record.PaymentID)
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("load idempotent payment: %w", err))
			}
			if prior != nil {
				return prior, nil
			}
		}
	}

	prior, err := s.paymentRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if prior == nil {
		return nil, nil
	}
	if !prior.OwnedBy(caller.MerchantID) {
		return nil, apperror.ErrIdempotencyKeyReused()
	}
	return prior, nil
}

// attachInstructions fills the QR payload or pay code, from the live
// provider when one is configured and the caller holds a live key.
func (s *PaymentServiceImpl) attachInstructions(ctx context.Context, caller domain.Caller, p *domain.PaymentIntent) error {
	if s.provider != nil && caller.Mode == domain.ModeLive {
		tx, err := s.provider.CreateTransaction(ctx, providerRequest(p))
		if err == nil {
			// Logged before persisting so an orphaned upstream transaction
			// can be reconciled by hand if the insert fails.
			s.log.Info().
				Str("provider", s.provider.Name()).
				Str("provider_ref", tx.Reference).
				Str("payment_id", p.ID.String()).
				Msg("provider transaction created")

			p.ProviderRef = stringPtr(tx.Reference)
			p.ProviderStatus = stringPtr(tx.Status)
			p.QRString = stringPtr(tx.QRString)
			p.PayCode = stringPtr(tx.PayCode)
			return nil
		}
		if s.opts.FailurePolicy != FailurePolicyLenient {
			s.log.Error().Err(err).Str("provider", s.provider.Name()).Str("payment_id", p.ID.String()).Msg("provider create failed")
			return apperror.ErrProvider(err)
		}
		s.log.Warn().Err(err).Str("provider", s.provider.Name()).Str("payment_id", p.ID.String()).
			Msg("provider create failed, falling back to sandbox instructions")
	}

	if domain.IsQRMethod(p.PaymentMethod) {
		p.QRString = stringPtr(s.qr.QRString(p.ID, p.Amount))
	} else {
		p.PayCode = stringPtr(s.qr.PayCode(p.ID, p.PaymentMethod))
	}
	return nil
}

func providerRequest(p *domain.PaymentIntent) ports.ProviderCreateRequest {
	return ports.ProviderCreateRequest{
		MerchantRef:   p.ID.String(),
		ExternalID:    p.ExternalID,
		Amount:        p.Amount,
		PaymentMethod: p.PaymentMethod,
		CustomerName:  deref(p.CustomerName),
		CustomerEmail: deref(p.CustomerEmail),
		CustomerPhone: deref(p.CustomerPhone),
		Description:   deref(p.Description),
		ExpiresAt:     p.ExpiresAt,
	}
}

// Get looks an intent up by internal ID first, then by external_id.
func (s *PaymentServiceImpl) Get(ctx context.Context, caller domain.Caller, idOrExternalID string) (*domain.PaymentIntent, error) {
	var payment *domain.PaymentIntent
	if id, err := uuid.Parse(idOrExternalID); err == nil {
		payment, err = s.paymentRepo.GetByID(ctx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get payment: %w", err))
		}
	}
	if payment == nil {
		var err error
		payment, err = s.paymentRepo.GetByExternalID(ctx, idOrExternalID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("get payment by external_id: %w", err))
		}
	}
	if payment == nil {
		return nil, apperror.ErrPaymentNotFound()
	}
	if !payment.OwnedBy(caller.MerchantID) {
		return nil, apperror.ErrForbidden()
	}
	return payment, nil
}

// List returns the caller's intents newest first. It also returns the
// effective limit after capping.
func (s *PaymentServiceImpl) List(ctx context.Context, caller domain.Caller, limit int, status *domain.PaymentStatus) ([]domain.PaymentIntent, int, error) {
	if status != nil && !status.IsValid() {
		return nil, 0, apperror.ValidationFields(map[string]string{"status": "must be one of pending, paid, expired, failed, cancelled"})
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > s.opts.ListMaxLimit {
		limit = s.opts.ListMaxLimit
	}

	payments, err := s.paymentRepo.List(ctx, ports.PaymentListParams{
		MerchantID: caller.MerchantID,
		Status:     status,
		Limit:      limit,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list payments: %w", err))
	}
	return payments, limit, nil
}

// Simulate force-transitions a pending sandbox intent.
func (s *PaymentServiceImpl) Simulate(ctx context.Context, caller domain.Caller, idOrExternalID string, status domain.PaymentStatus) (*domain.PaymentIntent, error) {
	if !caller.IsSandbox() {
		return nil, apperror.ErrSandboxOnly()
	}
	if !status.IsTerminal() {
		return nil, apperror.ValidationFields(map[string]string{"status": "must be one of paid, expired, failed, cancelled"})
	}

	payment, err := s.Get(ctx, caller, idOrExternalID)
	if err != nil {
		return nil, err
	}
	if payment.Mode == domain.ModeLive {
		return nil, apperror.ErrSandboxOnly()
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, apperror.ErrInvalidStatus(fmt.Sprintf("payment is already %s", payment.Status))
	}

	changed, err := s.ApplyStatus(ctx, payment, status, nil, nil)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, apperror.ErrInvalidStatus("payment is no longer pending")
	}
	return payment, nil
}

// CheckStatus reconciles an intent with the provider when possible, then
// applies local expiry.
func (s *PaymentServiceImpl) CheckStatus(ctx context.Context, caller domain.Caller, idOrExternalID string) (*domain.PaymentIntent, error) {
	payment, err := s.Get(ctx, caller, idOrExternalID)
	if err != nil {
		return nil, err
	}

	if s.provider != nil && payment.ProviderRef != nil && payment.Status == domain.PaymentStatusPending {
		if err := s.reconcile(ctx, payment); err != nil {
			return nil, err
		}
	}

	if payment.IsOverdue(s.now().UTC()) {
		if _, err := s.transitionOrReload(ctx, payment, domain.PaymentStatusExpired, nil, nil); err != nil {
			return nil, err
		}
	}
	return payment, nil
}

// reconcile pulls the upstream status. Provider errors are logged and the
// stored state is returned; a poll must not fail because the provider is down.
func (s *PaymentServiceImpl) reconcile(ctx context.Context, payment *domain.PaymentIntent) error {
	upstream, err := s.provider.CheckStatus(ctx, *payment.ProviderRef)
	if err != nil {
		s.log.Warn().Err(err).
			Str("payment_id", payment.ID.String()).
			Str("provider_ref", *payment.ProviderRef).
			Msg("provider status check failed")
		return nil
	}

	raw := upstream.Status
	mapped := domain.MapProviderStatus(raw)
	switch {
	case mapped.IsTerminal():
		_, err := s.transitionOrReload(ctx, payment, mapped, &raw, upstream.PaidAt)
		return err
	case payment.ProviderStatus == nil || *payment.ProviderStatus != raw:
		if mapped == domain.PaymentStatusUnknown {
			s.log.Warn().Str("payment_id", payment.ID.String()).Str("provider_status", raw).Msg("unrecognized provider status")
		}
		now := s.now().UTC()
		if err := s.paymentRepo.RecordProviderStatus(ctx, payment.ID, raw, now); err != nil {
			return apperror.InternalError(fmt.Errorf("record provider status: %w", err))
		}
		payment.ProviderStatus = &raw
		payment.UpdatedAt = now
	}
	return nil
}

// transitionOrReload applies a transition and, if another writer got there
// first, refreshes payment with the stored state.
func (s *PaymentServiceImpl) transitionOrReload(ctx context.Context, payment *domain.PaymentIntent, status domain.PaymentStatus, providerStatus *string, paidAt *time.Time) (bool, error) {
	changed, err := s.ApplyStatus(ctx, payment, status, providerStatus, paidAt)
	if err != nil || changed {
		return changed, err
	}
	current, err := s.paymentRepo.GetByID(ctx, payment.ID)
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("reload payment: %w", err))
	}
	if current != nil {
		*payment = *current
	}
	return false, nil
}

// ApplyStatus moves a pending intent to a terminal status with a storage
// level compare-and-set. On success payment is updated in place, an event
// is published and the merchant callback is queued.
func (s *PaymentServiceImpl) ApplyStatus(ctx context.Context, payment *domain.PaymentIntent, status domain.PaymentStatus, providerStatus *string, paidAt *time.Time) (bool, error) {
	if !status.IsTerminal() {
		return false, apperror.ErrInvalidStatus(fmt.Sprintf("cannot transition to %s", status))
	}
	if payment.IsTerminal() {
		return false, nil
	}

	now := s.now().UTC()
	if status == domain.PaymentStatusPaid {
		if paidAt == nil {
			paidAt = &now
		}
	} else {
		paidAt = nil
	}

	changed, err := s.paymentRepo.TransitionStatus(ctx, domain.StatusUpdate{
		ID:             payment.ID,
		Status:         status,
		ProviderStatus: providerStatus,
		PaidAt:         paidAt,
		UpdatedAt:      now,
	})
	if err != nil {
		return false, apperror.InternalError(fmt.Errorf("transition payment: %w", err))
	}
	if !changed {
		return false, nil
	}

	payment.Status = status
	payment.PaidAt = paidAt
	payment.UpdatedAt = now
	if providerStatus != nil {
		payment.ProviderStatus = providerStatus
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("merchant_id", payment.MerchantID.String()).
		Str("status", string(status)).
		Msg("payment status changed")

	s.publish(ctx, domain.EventTypeFor(status), payment)
	if s.callbacks != nil && payment.CallbackURL != nil {
		if err := s.callbacks.Notify(ctx, payment); err != nil {
			s.log.Warn().Err(err).Str("payment_id", payment.ID.String()).Msg("failed to queue merchant callback")
		}
	}
	return true, nil
}

// ExpireOverdue expires up to limit pending intents past their expiry.
func (s *PaymentServiceImpl) ExpireOverdue(ctx context.Context, limit int) (int, error) {
	overdue, err := s.paymentRepo.ListOverdue(ctx, s.now().UTC(), limit)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list overdue payments: %w", err))
	}

	expired := 0
	for i := range overdue {
		if ctx.Err() != nil {
			break
		}
		changed, err := s.ApplyStatus(ctx, &overdue[i], domain.PaymentStatusExpired, nil, nil)
		if err != nil {
			s.log.Warn().Err(err).Str("payment_id", overdue[i].ID.String()).Msg("failed to expire payment")
			continue
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

func (s *PaymentServiceImpl) publish(ctx context.Context, eventType string, payment *domain.PaymentIntent) {
	if s.publisher == nil {
		return
	}
	event := domain.NewPaymentEvent(eventType, payment, s.now().UTC())
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.Warn().Err(err).
			Str("payment_id", payment.ID.String()).
			Str("event", eventType).
			Msg("failed to publish payment event")
	}
}

// stringPtr returns nil for the empty string.
func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
