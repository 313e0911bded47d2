package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"qris-gateway/internal/adapter/http/middleware"
	"qris-gateway/internal/adapter/storage/memory"
	"qris-gateway/internal/core/ports"
	"qris-gateway/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// newMemoryRouter wires the real services over the in-memory backend.
func newMemoryRouter(t *testing.T, rateLimit ports.RateLimitStore) *gin.Engine {
	t.Helper()
	log := zerolog.Nop()
	ctx := context.Background()

	paymentRepo := memory.NewPaymentRepo()
	merchantRepo := memory.NewMerchantRepo()
	keyRepo := memory.NewAPIKeyRepo()

	encSvc, err := service.NewAESEncryptionService(testEncryptionKey)
	require.NoError(t, err)
	tokenSvc := service.NewJWTTokenService("router-test-secret", time.Hour, "qris-gateway")

	channelSvc := service.NewChannelService(memory.NewChannelRepo(), log)
	_, err = channelSvc.Seed(ctx)
	require.NoError(t, err)

	paymentSvc := service.NewPaymentService(
		paymentRepo, channelSvc, service.NewFeeCalculator(),
		service.NewSandboxQRGenerator("QRIS Gateway", "JAKARTA"),
		nil, memory.NewIdempotencyCache(), nil, nil,
		service.PaymentServiceOptions{ListMaxLimit: 100}, log,
	)

	return SetupRouter(RouterDeps{
		AuthSvc: service.NewAuthService(merchantRepo, keyRepo, memory.NewTransactor(),
			service.NewArgon2HashService(), encSvc, tokenSvc, log),
		PaymentSvc:     paymentSvc,
		WebhookSvc:     service.NewWebhookService(nil, false, memory.NewWebhookLogRepo(), paymentRepo, paymentSvc, log),
		ChannelSvc:     channelSvc,
		APIKeySvc:      service.NewAPIKeyService(keyRepo, merchantRepo, log),
		MerchantSvc:    service.NewMerchantService(merchantRepo, encSvc),
		ReportingSvc:   service.NewReportingService(paymentRepo),
		TokenSvc:       tokenSvc,
		AuditSvc:       service.NewAuditService(memory.NewAuditRepo(), log),
		RateLimitStore: rateLimit,
		HealthCheckers: []ports.HealthChecker{memory.HealthCheck{}},
		Mode:           gin.TestMode,
		Logger:         log,
	})
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	apiKey string
	token  string
}

func (a *apiClient) do(method, path string, body interface{}, headers ...string) (int, map[string]interface{}) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("X-API-Key", a.apiKey)
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w.Code, resp
}

func registerMerchant(t *testing.T, router *gin.Engine, username string) *apiClient {
	t.Helper()
	anon := &apiClient{t: t, router: router}
	code, resp := anon.do(http.MethodPost, "/api/v1/auth/register", map[string]string{
		"username": username, "password": "password123", "merchant_name": "Toko " + username,
	})
	require.Equal(t, http.StatusCreated, code, resp)
	data := resp["data"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(data["sandbox_api_key"].(string), "qgw_sk_test_"))

	code, resp = anon.do(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": username, "password": "password123",
	})
	require.Equal(t, http.StatusOK, code, resp)

	return &apiClient{
		t:      t,
		router: router,
		apiKey: data["sandbox_api_key"].(string),
		token:  resp["data"].(map[string]interface{})["token"].(string),
	}
}

func TestRouter_PaymentLifecycle(t *testing.T) {
	router := newMemoryRouter(t, memory.NewRateLimitStore())
	client := registerMerchant(t, router, "alice")

	code, resp := client.do(http.MethodGet, "/api/v1/payment-channels", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, resp["data"])

	// Create, then replay with the same idempotency key.
	body := map[string]interface{}{"external_id": "order-1", "amount": 50_000, "payment_method": "QRIS"}
	code, resp = client.do(http.MethodPost, "/api/v1/payments", body, HeaderIdempotencyKey, "idem-1")
	require.Equal(t, http.StatusCreated, code, resp)
	created := resp["data"].(map[string]interface{})
	assert.Equal(t, "pending", created["status"])
	assert.Equal(t, float64(350), created["fee_amount"])
	assert.Equal(t, float64(49_650), created["net_amount"])
	assert.NotEmpty(t, created["qr_string"])
	id := created["id"].(string)

	code, resp = client.do(http.MethodPost, "/api/v1/payments", body, HeaderIdempotencyKey, "idem-1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp["idempotent"])
	assert.Equal(t, id, resp["data"].(map[string]interface{})["id"])

	// Same external_id without the key conflicts.
	code, resp = client.do(http.MethodPost, "/api/v1/payments", body)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "DUPLICATE_EXTERNAL_ID", resp["error"].(map[string]interface{})["code"])

	// Lookup by id and by external_id.
	code, _ = client.do(http.MethodGet, "/api/v1/payments/"+id, nil)
	assert.Equal(t, http.StatusOK, code)
	code, resp = client.do(http.MethodGet, "/api/v1/payments/order-1/status", nil)
	require.Equal(t, http.StatusOK, code)
	status := resp["data"].(map[string]interface{})
	assert.Equal(t, "pending", status["status"])
	assert.Equal(t, float64(350), status["fee_amount"])
	assert.Equal(t, float64(49_650), status["net_amount"])

	// Simulate payment, then a second simulate is rejected.
	code, resp = client.do(http.MethodPost, "/api/v1/payments/"+id+"/simulate", map[string]string{"status": "paid"})
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, "paid", resp["data"].(map[string]interface{})["status"])
	code, _ = client.do(http.MethodPost, "/api/v1/payments/"+id+"/simulate", map[string]string{"status": "failed"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = client.do(http.MethodGet, "/api/v1/payments?status=paid&limit=10", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), resp["meta"].(map[string]interface{})["count"])

	// Dashboard stats reflect the paid intent.
	dash := &apiClient{t: t, router: router, token: client.token}
	code, resp = dash.do(http.MethodGet, "/api/v1/dashboard/stats?period=all", nil)
	require.Equal(t, http.StatusOK, code)
	stats := resp["data"].(map[string]interface{})["stats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["paid"])
	assert.Equal(t, float64(49_650), stats["net_paid"])
}

func TestRouter_SandboxWebhook(t *testing.T) {
	router := newMemoryRouter(t, nil)
	client := registerMerchant(t, router, "bob")

	code, resp := client.do(http.MethodPost, "/api/v1/payments",
		map[string]interface{}{"external_id": "order-9", "amount": 25_000})
	require.Equal(t, http.StatusCreated, code, resp)
	id := resp["data"].(map[string]interface{})["id"].(string)

	hook := &apiClient{t: t, router: router}
	code, resp = hook.do(http.MethodPost, "/api/v1/webhooks/sandbox",
		map[string]string{"merchant_ref": id, "status": "PAID"})
	require.Equal(t, http.StatusOK, code, resp)
	ack := resp["data"].(map[string]interface{})
	assert.Equal(t, "applied", ack["outcome"])
	assert.Equal(t, "paid", ack["status"])

	// Replays are acknowledged without changing state.
	code, resp = hook.do(http.MethodPost, "/api/v1/webhooks/sandbox",
		map[string]string{"merchant_ref": id, "status": "EXPIRED"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "already_terminal", resp["data"].(map[string]interface{})["outcome"])

	code, _ = hook.do(http.MethodPost, "/api/v1/webhooks/tripay", map[string]string{"status": "PAID"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestRouter_TenantIsolation(t *testing.T) {
	router := newMemoryRouter(t, nil)
	alice := registerMerchant(t, router, "alice")
	eve := registerMerchant(t, router, "eve")

	code, resp := alice.do(http.MethodPost, "/api/v1/payments",
		map[string]interface{}{"external_id": "secret-order", "amount": 10_000})
	require.Equal(t, http.StatusCreated, code, resp)
	id := resp["data"].(map[string]interface{})["id"].(string)

	for _, ref := range []string{id, "secret-order"} {
		code, resp = eve.do(http.MethodGet, "/api/v1/payments/"+ref, nil)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, "FORBIDDEN", resp["error"].(map[string]interface{})["code"])
	}

	code, resp = eve.do(http.MethodPost, "/api/v1/payments/"+id+"/simulate", map[string]string{"status": "paid"})
	assert.Equal(t, http.StatusForbidden, code)
	code, resp = alice.do(http.MethodGet, "/api/v1/payments/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pending", resp["data"].(map[string]interface{})["status"])
}

func TestRouter_APIKeyManagement(t *testing.T) {
	router := newMemoryRouter(t, nil)
	client := registerMerchant(t, router, "carol")
	dash := &apiClient{t: t, router: router, token: client.token}

	code, resp := dash.do(http.MethodPost, "/api/v1/api-keys", map[string]string{"name": "second", "mode": "sandbox"})
	require.Equal(t, http.StatusCreated, code, resp)
	issued := resp["data"].(map[string]interface{})
	newKey := issued["key"].(string)

	code, _ = (&apiClient{t: t, router: router, apiKey: newKey}).do(http.MethodGet, "/api/v1/payments", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = dash.do(http.MethodDelete, "/api/v1/api-keys/"+issued["id"].(string), nil)
	require.Equal(t, http.StatusOK, code)

	code, resp = (&apiClient{t: t, router: router, apiKey: newKey}).do(http.MethodGet, "/api/v1/payments", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "API_KEY_INACTIVE", resp["error"].(map[string]interface{})["code"])

	code, resp = dash.do(http.MethodPost, "/api/v1/merchants/me/rotate-callback-secret", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, resp["data"].(map[string]interface{})["callback_secret"])
}

func TestRouter_AuthBoundaries(t *testing.T) {
	router := newMemoryRouter(t, nil)
	anon := &apiClient{t: t, router: router}

	code, _ := anon.do(http.MethodGet, "/api/v1/payments", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = anon.do(http.MethodGet, "/api/v1/merchants/me", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp := anon.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", resp["status"])
}

func TestRouter_AuthRateLimit(t *testing.T) {
	router := newMemoryRouter(t, memory.NewRateLimitStore())
	anon := &apiClient{t: t, router: router}

	limit := int(middleware.DefaultRateLimitRules()[middleware.ClassAuth].Limit)
	for i := 0; i < limit; i++ {
		code, _ := anon.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "nobody", "password": "x"})
		require.NotEqual(t, http.StatusTooManyRequests, code, "request %d", i+1)
	}
	code, resp := anon.do(http.MethodPost, "/api/v1/auth/login", map[string]string{"username": "nobody", "password": "x"})
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", resp["error"].(map[string]interface{})["code"])
}

func TestRouter_ConcurrentSimulateSettlesOnce(t *testing.T) {
	router := newMemoryRouter(t, nil)
	client := registerMerchant(t, router, "carol")

	code, resp := client.do(http.MethodPost, "/api/v1/payments",
		map[string]interface{}{"external_id": "race-1", "amount": 25_000, "payment_method": "QRIS"})
	require.Equal(t, http.StatusCreated, code, resp)
	id := resp["data"].(map[string]interface{})["id"].(string)

	const workers = 50
	var (
		wg    sync.WaitGroup
		ok    atomic.Int32
		other atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/"+id+"/simulate", strings.NewReader(`{"status":"paid"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-API-Key", client.apiKey)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code == http.StatusOK {
				ok.Add(1)
			} else {
				other.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(workers-1), other.Load())

	code, resp = client.do(http.MethodGet, "/api/v1/payments/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "paid", resp["data"].(map[string]interface{})["status"])
}
