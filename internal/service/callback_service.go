package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Outbound callback headers.
const (
	CallbackSignatureHeader = "X-Callback-Signature"
	CallbackEventHeader     = "X-Callback-Event"
)

// DefaultCallbackRetryIntervals is the wait before each redelivery.
var DefaultCallbackRetryIntervals = []time.Duration{
	time.Second,
	5 * time.Second,
	30 * time.Second,
}

// CallbackPayload is the JSON body posted to a merchant's callback_url.
type CallbackPayload struct {
	Event     string          `json:"event"`
	Data      CallbackPayment `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// CallbackPayment is the intent snapshot carried by a callback.
type CallbackPayment struct {
	ID            uuid.UUID            `json:"id"`
	ExternalID    string               `json:"external_id"`
	Status        domain.PaymentStatus `json:"status"`
	Amount        int64                `json:"amount"`
	FeeAmount     int64                `json:"fee_amount"`
	NetAmount     int64                `json:"net_amount"`
	PaymentMethod string               `json:"payment_method"`
	Mode          domain.Mode          `json:"mode"`
	PaidAt        *time.Time           `json:"paid_at,omitempty"`
}

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// CallbackServiceImpl implements ports.CallbackService. Deliveries run in
// background goroutines; Shutdown stops pending retries and waits.
type CallbackServiceImpl struct {
	merchantRepo ports.MerchantRepository
	deliveryRepo ports.CallbackRepository // optional
	encSvc       ports.EncryptionService
	sigSvc       ports.SignatureService
	httpClient   HTTPClient
	retry        []time.Duration
	log          zerolog.Logger

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

// NewCallbackService creates a new merchant callback notifier. A nil retry
// slice uses DefaultCallbackRetryIntervals.
func NewCallbackService(
	merchantRepo ports.MerchantRepository,
	deliveryRepo ports.CallbackRepository,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	retry []time.Duration,
	log zerolog.Logger,
) *CallbackServiceImpl {
	if retry == nil {
		retry = DefaultCallbackRetryIntervals
	}
	return &CallbackServiceImpl{
		merchantRepo: merchantRepo,
		deliveryRepo: deliveryRepo,
		encSvc:       encSvc,
		sigSvc:       sigSvc,
		httpClient:   httpClient,
		retry:        retry,
		log:          log,
		stop:         make(chan struct{}),
	}
}

// Notify signs a status snapshot with the merchant's callback secret and
// delivers it asynchronously with retries.
func (s *CallbackServiceImpl) Notify(ctx context.Context, payment *domain.PaymentIntent) error {
	if payment.CallbackURL == nil || *payment.CallbackURL == "" {
		return nil
	}

	merchant, err := s.merchantRepo.GetByID(ctx, payment.MerchantID)
	if err != nil {
		return fmt.Errorf("fetch merchant: %w", err)
	}
	if merchant == nil {
		return fmt.Errorf("merchant %s not found", payment.MerchantID)
	}

	secret, err := s.encSvc.Decrypt(merchant.CallbackSecretEnc)
	if err != nil {
		return fmt.Errorf("decrypt callback secret: %w", err)
	}

	body, err := json.Marshal(CallbackPayload{
		Event: domain.EventTypeFor(payment.Status),
		Data: CallbackPayment{
			ID:            payment.ID,
			ExternalID:    payment.ExternalID,
			Status:        payment.Status,
			Amount:        payment.Amount,
			FeeAmount:     payment.FeeAmount,
			NetAmount:     payment.NetAmount,
			PaymentMethod: payment.PaymentMethod,
			Mode:          payment.Mode,
			PaidAt:        payment.PaidAt,
		},
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}

	now := time.Now().UTC()
	delivery := &domain.CallbackDelivery{
		ID:         uuid.New(),
		PaymentID:  payment.ID,
		MerchantID: payment.MerchantID,
		URL:        *payment.CallbackURL,
		Payload:    string(body),
		Status:     domain.CallbackStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if s.deliveryRepo != nil {
		if err := s.deliveryRepo.Create(ctx, delivery); err != nil {
			s.log.Warn().Err(err).Str("payment_id", payment.ID.String()).Msg("callback: failed to record delivery")
		}
	}

	signature := s.sigSvc.Sign(secret, string(body))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliverWithRetries(delivery, body, signature, domain.EventTypeFor(payment.Status))
	}()
	return nil
}

// deliverWithRetries posts the callback until a 2xx response or the retry
// schedule is exhausted.
func (s *CallbackServiceImpl) deliverWithRetries(delivery *domain.CallbackDelivery, body []byte, signature, event string) {
	log := s.log.With().Str("payment_id", delivery.PaymentID.String()).Str("url", delivery.URL).Logger()

	for attempt := 0; attempt <= len(s.retry); attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.retry[attempt-1]):
			case <-s.stop:
				delivery.Status = domain.CallbackStatusInterrupted
				s.record(delivery)
				log.Warn().Int("attempt", attempt).Msg("callback: shutdown before redelivery")
				return
			}
		}

		delivery.Attempt = attempt + 1
		status, err := s.post(delivery.URL, body, signature, event)
		if status != 0 {
			delivery.HTTPStatus = &status
		}

		switch {
		case err != nil:
			msg := err.Error()
			delivery.LastError = &msg
			log.Warn().Err(err).Int("attempt", delivery.Attempt).Msg("callback: delivery failed")
		case status >= 200 && status < 300:
			delivery.Status = domain.CallbackStatusDelivered
			delivery.LastError = nil
			s.record(delivery)
			log.Info().Int("attempt", delivery.Attempt).Int("status", status).Msg("callback: delivered")
			return
		default:
			msg := fmt.Sprintf("non-2xx response: %d", status)
			delivery.LastError = &msg
			log.Warn().Int("attempt", delivery.Attempt).Int("status", status).Msg("callback: non-2xx response, retrying")
		}
		s.record(delivery)
	}

	delivery.Status = domain.CallbackStatusFailed
	s.record(delivery)
	log.Error().Int("attempts", delivery.Attempt).Msg("callback: all retry attempts exhausted")
}

func (s *CallbackServiceImpl) post(url string, body []byte, signature, event string) (int, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(CallbackSignatureHeader, signature)
	req.Header.Set(CallbackEventHeader, event)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (s *CallbackServiceImpl) record(delivery *domain.CallbackDelivery) {
	if s.deliveryRepo == nil {
		return
	}
	delivery.UpdatedAt = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.deliveryRepo.UpdateAttempt(ctx, delivery); err != nil {
		s.log.Warn().Err(err).Str("delivery_id", delivery.ID.String()).Msg("callback: failed to update delivery")
	}
}

// Shutdown cancels pending redeliveries and waits for in-flight posts.
func (s *CallbackServiceImpl) Shutdown() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}
