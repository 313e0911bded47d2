package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	mu     sync.Mutex
	calls  []*http.Request
	bodies [][]byte
	doFunc func(attempt int) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	body, _ := io.ReadAll(req.Body)
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.bodies = append(m.bodies, body)
	n := len(m.calls)
	m.mu.Unlock()
	return m.doFunc(n)
}

func (m *mockHTTPClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// waitForCalls blocks until the client has seen n requests, so Shutdown does
// not race the redelivery loop.
func waitForCalls(t *testing.T, client *mockHTTPClient, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return client.callCount() >= n }, 2*time.Second, 5*time.Millisecond)
}

func httpResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(""))}
}

func callbackPayment() *domain.PaymentIntent {
	url := "https://merchant.example.com/callback"
	paidAt := time.Now().UTC()
	return &domain.PaymentIntent{
		ID:            uuid.New(),
		MerchantID:    uuid.New(),
		ExternalID:    "order-9",
		Amount:        50000,
		FeeAmount:     350,
		NetAmount:     49650,
		PaymentMethod: "QRIS",
		Mode:          domain.ModeSandbox,
		Status:        domain.PaymentStatusPaid,
		PaidAt:        &paidAt,
		CallbackURL:   &url,
	}
}

func TestCallbackService_Notify_Delivered(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	deliveryRepo := mocks.NewMockCallbackRepository(ctrl)
	encSvc := mocks.NewMockEncryptionService(ctrl)
	sigSvc := NewHMACSignatureService()

	client := &mockHTTPClient{doFunc: func(int) (*http.Response, error) { return httpResponse(http.StatusOK), nil }}
	svc := NewCallbackService(merchantRepo, deliveryRepo, encSvc, sigSvc, client, []time.Duration{0}, zerolog.Nop())

	p := callbackPayment()
	merchantRepo.EXPECT().GetByID(gomock.Any(), p.MerchantID).Return(&domain.Merchant{ID: p.MerchantID, CallbackSecretEnc: "enc"}, nil)
	encSvc.EXPECT().Decrypt("enc").Return("cb-secret", nil)
	deliveryRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	var final domain.CallbackDelivery
	deliveryRepo.EXPECT().UpdateAttempt(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, d *domain.CallbackDelivery) error {
			final = *d
			return nil
		})

	require.NoError(t, svc.Notify(context.Background(), p))
	svc.Shutdown()

	require.Len(t, client.calls, 1)
	req := client.calls[0]
	assert.Equal(t, *p.CallbackURL, req.URL.String())
	assert.Equal(t, "payment.paid", req.Header.Get(CallbackEventHeader))
	assert.True(t, sigSvc.Verify("cb-secret", string(client.bodies[0]), req.Header.Get(CallbackSignatureHeader)))

	var payload CallbackPayload
	require.NoError(t, json.Unmarshal(client.bodies[0], &payload))
	assert.Equal(t, p.ID, payload.Data.ID)
	assert.Equal(t, domain.PaymentStatusPaid, payload.Data.Status)
	assert.Equal(t, int64(49650), payload.Data.NetAmount)

	assert.Equal(t, domain.CallbackStatusDelivered, final.Status)
	assert.Equal(t, 1, final.Attempt)
	assert.Equal(t, http.StatusOK, *final.HTTPStatus)
}

func TestCallbackService_Notify_RetriesThenFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	encSvc := mocks.NewMockEncryptionService(ctrl)

	client := &mockHTTPClient{doFunc: func(attempt int) (*http.Response, error) {
		if attempt == 1 {
			return nil, errors.New("connection refused")
		}
		return httpResponse(http.StatusInternalServerError), nil
	}}
	svc := NewCallbackService(merchantRepo, nil, encSvc, NewHMACSignatureService(), client, []time.Duration{0, 0}, zerolog.Nop())

	p := callbackPayment()
	merchantRepo.EXPECT().GetByID(gomock.Any(), p.MerchantID).Return(&domain.Merchant{ID: p.MerchantID, CallbackSecretEnc: "enc"}, nil)
	encSvc.EXPECT().Decrypt("enc").Return("cb-secret", nil)

	require.NoError(t, svc.Notify(context.Background(), p))
	waitForCalls(t, client, 3)
	svc.Shutdown()

	assert.Len(t, client.calls, 3)
}

func TestCallbackService_Notify_EventuallyDelivered(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	encSvc := mocks.NewMockEncryptionService(ctrl)

	client := &mockHTTPClient{doFunc: func(attempt int) (*http.Response, error) {
		if attempt < 2 {
			return httpResponse(http.StatusBadGateway), nil
		}
		return httpResponse(http.StatusNoContent), nil
	}}
	svc := NewCallbackService(merchantRepo, nil, encSvc, NewHMACSignatureService(), client, []time.Duration{0, 0, 0}, zerolog.Nop())

	p := callbackPayment()
	merchantRepo.EXPECT().GetByID(gomock.Any(), p.MerchantID).Return(&domain.Merchant{ID: p.MerchantID, CallbackSecretEnc: "enc"}, nil)
	encSvc.EXPECT().Decrypt("enc").Return("cb-secret", nil)

	require.NoError(t, svc.Notify(context.Background(), p))
	waitForCalls(t, client, 2)
	svc.Shutdown()

	assert.Len(t, client.calls, 2)
}

func TestCallbackService_Shutdown_MarksDeliveryInterrupted(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	deliveryRepo := mocks.NewMockCallbackRepository(ctrl)
	encSvc := mocks.NewMockEncryptionService(ctrl)

	client := &mockHTTPClient{doFunc: func(int) (*http.Response, error) { return httpResponse(http.StatusServiceUnavailable), nil }}
	svc := NewCallbackService(merchantRepo, deliveryRepo, encSvc, NewHMACSignatureService(), client, []time.Duration{time.Hour}, zerolog.Nop())

	p := callbackPayment()
	merchantRepo.EXPECT().GetByID(gomock.Any(), p.MerchantID).Return(&domain.Merchant{ID: p.MerchantID, CallbackSecretEnc: "enc"}, nil)
	encSvc.EXPECT().Decrypt("enc").Return("cb-secret", nil)
	deliveryRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)

	var (
		mu       sync.Mutex
		statuses []domain.CallbackStatus
	)
	deliveryRepo.EXPECT().UpdateAttempt(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, d *domain.CallbackDelivery) error {
			mu.Lock()
			statuses = append(statuses, d.Status)
			mu.Unlock()
			return nil
		}).Times(2)

	require.NoError(t, svc.Notify(context.Background(), p))
	waitForCalls(t, client, 1)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) == 1
	}, 2*time.Second, 5*time.Millisecond)
	svc.Shutdown()

	assert.Equal(t, 1, client.callCount())
	assert.Equal(t, []domain.CallbackStatus{domain.CallbackStatusPending, domain.CallbackStatusInterrupted}, statuses)
}

func TestCallbackService_Notify_NoCallbackURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := NewCallbackService(mocks.NewMockMerchantRepository(ctrl), nil, mocks.NewMockEncryptionService(ctrl),
		NewHMACSignatureService(), &mockHTTPClient{}, nil, zerolog.Nop())

	p := callbackPayment()
	p.CallbackURL = nil
	assert.NoError(t, svc.Notify(context.Background(), p))
}

func TestCallbackService_Notify_DecryptFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchantRepo := mocks.NewMockMerchantRepository(ctrl)
	encSvc := mocks.NewMockEncryptionService(ctrl)
	svc := NewCallbackService(merchantRepo, nil, encSvc, NewHMACSignatureService(), &mockHTTPClient{}, nil, zerolog.Nop())

	p := callbackPayment()
	merchantRepo.EXPECT().GetByID(gomock.Any(), p.MerchantID).Return(&domain.Merchant{CallbackSecretEnc: "bad"}, nil)
	encSvc.EXPECT().Decrypt("bad").Return("", errors.New("cipher: message authentication failed"))

	assert.Error(t, svc.Notify(context.Background(), p))
}
