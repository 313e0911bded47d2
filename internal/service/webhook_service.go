package service

import (
	"context"
	"encoding/json"
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

// SandboxProviderName is the webhook path accepted when no live provider
// is configured. Its callbacks are never signature-checked.
const SandboxProviderName = "sandbox"

// webhookService implements ports.WebhookService.
type webhookService struct {
	provider         ports.PaymentProvider // nil in sandbox mode
	requireSignature bool
	logRepo          ports.WebhookLogRepository
	paymentRepo      ports.PaymentRepository
	payments         ports.PaymentService
	log              zerolog.Logger
	now              func() time.Time
}

// NewWebhookService creates the inbound provider callback processor.
func NewWebhookService(
	provider ports.PaymentProvider,
	requireSignature bool,
	logRepo ports.WebhookLogRepository,
	paymentRepo ports.PaymentRepository,
	payments ports.PaymentService,
	log zerolog.Logger,
) ports.WebhookService {
	return &webhookService{
		provider:         provider,
		requireSignature: requireSignature,
		logRepo:          logRepo,
		paymentRepo:      paymentRepo,
		payments:         payments,
		log:              log,
		now:              time.Now,
	}
}

// Handle processes one callback. The raw entry is persisted before anything
// else; failing to write it is the only storage failure that rejects the
// callback outright, so the provider retries.
func (s *webhookService) Handle(ctx context.Context, req ports.WebhookRequest) (*ports.WebhookResult, error) {
	raw := &domain.WebhookLog{
		ID:         uuid.New(),
		Provider:   req.Provider,
		Stage:      domain.WebhookStageReceived,
		PaymentRef: domain.UnresolvedPaymentRef,
		Payload:    string(req.RawBody),
		Signature:  req.Signature,
		Outcome:    domain.WebhookOutcomeReceived,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.logRepo.Create(ctx, raw); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("log raw webhook: %w", err))
	}

	outcome := &domain.WebhookLog{
		ID:         uuid.New(),
		Provider:   req.Provider,
		Stage:      domain.WebhookStageProcessed,
		PaymentRef: domain.UnresolvedPaymentRef,
		Signature:  req.Signature,
	}
	result, err := s.process(ctx, req, outcome)
	if err != nil {
		msg := err.Error()
		outcome.Error = &msg
	}
	s.finish(ctx, raw, outcome)
	return result, err
}

func (s *webhookService) process(ctx context.Context, req ports.WebhookRequest, outcome *domain.WebhookLog) (*ports.WebhookResult, error) {
	log := s.log.With().Str("provider", req.Provider).Logger()

	parse, err := s.parserFor(req.Provider)
	if err != nil {
		outcome.Outcome = domain.WebhookOutcomeUnresolved
		return nil, err
	}

	if s.provider != nil && (s.requireSignature || s.provider.HasSignature(req.RawBody, req.Signature)) {
		if !s.provider.VerifySignature(req.RawBody, req.Signature) {
			outcome.Outcome = domain.WebhookOutcomeInvalidSignature
			log.Warn().Msg("webhook signature verification failed")
			return nil, apperror.ErrInvalidSignature()
		}
		outcome.Verified = true
	}

	hook, err := parse(req.RawBody)
	if err != nil {
		outcome.Outcome = domain.WebhookOutcomeMalformed
		return nil, apperror.ErrMalformedPayload(err)
	}
	outcome.EventType = hook.EventType

	payment, err := s.resolve(ctx, hook)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		outcome.Outcome = domain.WebhookOutcomeUnresolved
		log.Warn().Str("reference", hook.Reference).Str("merchant_ref", hook.MerchantRef).Msg("webhook references unknown payment")
		return nil, apperror.ErrPaymentNotFound()
	}
	outcome.PaymentID = &payment.ID
	outcome.PaymentRef = payment.ID.String()

	rawStatus := strings.TrimSpace(hook.Status)
	mapped := domain.MapProviderStatus(rawStatus)

	switch {
	case payment.IsTerminal():
		outcome.Outcome = domain.WebhookOutcomeAlreadyTerminal
	case mapped == domain.PaymentStatusUnknown:
		outcome.Outcome = domain.WebhookOutcomeUnknownStatus
		log.Warn().Str("payment_id", payment.ID.String()).Str("provider_status", rawStatus).Msg("unrecognized provider status, manual review required")
		if err := s.recordProviderStatus(ctx, payment, rawStatus); err != nil {
			return nil, err
		}
	case mapped == domain.PaymentStatusPending:
		outcome.Outcome = domain.WebhookOutcomeUnchanged
		if err := s.recordProviderStatus(ctx, payment, rawStatus); err != nil {
			return nil, err
		}
	default:
		changed, err := s.payments.ApplyStatus(ctx, payment, mapped, &rawStatus, hook.PaidAt)
		if err != nil {
			return nil, err
		}
		if changed {
			outcome.Outcome = domain.WebhookOutcomeApplied
		} else {
			outcome.Outcome = domain.WebhookOutcomeAlreadyTerminal
		}
	}

	log.Info().
		Str("payment_id", payment.ID.String()).
		Str("provider_status", rawStatus).
		Str("outcome", outcome.Outcome).
		Bool("verified", outcome.Verified).
		Msg("webhook processed")

	return &ports.WebhookResult{PaymentID: payment.ID, Status: payment.Status, Outcome: outcome.Outcome}, nil
}

type webhookParser func(rawBody []byte) (*ports.ProviderWebhook, error)

// parserFor returns the payload parser for the provider path segment.
func (s *webhookService) parserFor(name string) (webhookParser, error) {
	if s.provider != nil {
		if !strings.EqualFold(name, s.provider.Name()) {
			return nil, apperror.ErrUnknownProvider(name)
		}
		return s.provider.ParseWebhook, nil
	}
	if !strings.EqualFold(name, SandboxProviderName) {
		return nil, apperror.ErrUnknownProvider(name)
	}
	return parseSandboxWebhook, nil
}

// resolve finds the target intent by provider reference, then by
// merchant_ref as an intent ID, then as an external_id.
func (s *webhookService) resolve(ctx context.Context, hook *ports.ProviderWebhook) (*domain.PaymentIntent, error) {
	if hook.Reference != "" {
		p, err := s.paymentRepo.GetByProviderRef(ctx, hook.Reference)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("resolve by provider ref: %w", err))
		}
		if p != nil {
			return p, nil
		}
	}
	if hook.MerchantRef == "" {
		return nil, nil
	}
	if id, err := uuid.Parse(hook.MerchantRef); err == nil {
		p, err := s.paymentRepo.GetByID(ctx, id)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("resolve by id: %w", err))
		}
		if p != nil {
			return p, nil
		}
	}
	p, err := s.paymentRepo.GetByExternalID(ctx, hook.MerchantRef)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve by external_id: %w", err))
	}
	return p, nil
}

func (s *webhookService) recordProviderStatus(ctx context.Context, p *domain.PaymentIntent, raw string) error {
	if p.ProviderStatus != nil && *p.ProviderStatus == raw {
		return nil
	}
	now := s.now().UTC()
	if err := s.paymentRepo.RecordProviderStatus(ctx, p.ID, raw, now); err != nil {
		return apperror.InternalError(fmt.Errorf("record provider status: %w", err))
	}
	p.ProviderStatus = &raw
	p.UpdatedAt = now
	return nil
}

// finish writes the processed-outcome entry and stamps the raw entry.
// Both are best effort.
func (s *webhookService) finish(ctx context.Context, raw, outcome *domain.WebhookLog) {
	now := s.now().UTC()
	outcome.Payload = raw.Payload
	outcome.CreatedAt = now
	outcome.ProcessedAt = &now

	if err := s.logRepo.Create(ctx, outcome); err != nil {
		s.log.Warn().Err(err).Str("webhook_id", raw.ID.String()).Msg("failed to log webhook outcome")
	}
	if err := s.logRepo.MarkProcessed(ctx, raw.ID, now); err != nil {
		s.log.Warn().Err(err).Str("webhook_id", raw.ID.String()).Msg("failed to mark webhook processed")
	}
}

// sandboxWebhook is the payload accepted on the sandbox webhook path.
type sandboxWebhook struct {
	Reference   string     `json:"reference"`
	MerchantRef string     `json:"merchant_ref"`
	Status      string     `json:"status"`
	EventType   string     `json:"event_type"`
	PaidAt      *time.Time `json:"paid_at"`
}

func parseSandboxWebhook(rawBody []byte) (*ports.ProviderWebhook, error) {
	var body sandboxWebhook
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return nil, err
	}
	if body.Status == "" {
		return nil, errors.New("status is required")
	}
	if body.Reference == "" && body.MerchantRef == "" {
		return nil, errors.New("reference or merchant_ref is required")
	}
	eventType := body.EventType
	if eventType == "" {
		eventType = "payment_status"
	}
	return &ports.ProviderWebhook{
		Reference:   body.Reference,
		MerchantRef: body.MerchantRef,
		Status:      body.Status,
		EventType:   eventType,
		PaidAt:      body.PaidAt,
	}, nil
}
