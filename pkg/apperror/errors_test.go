package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New(CodeSandboxOnly, "Sandbox only", http.StatusForbidden),
			expected: "[SANDBOX_ONLY] Sandbox only",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap(CodeInternal, "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[INTERNAL_ERROR] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(CodeInternal, "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New(CodeForbidden, "test", http.StatusForbidden).Unwrap())
}

func TestAppError_WithDetailsCopies(t *testing.T) {
	base := New(CodeValidation, "bad", http.StatusBadRequest)
	withDetails := base.WithDetails(map[string]interface{}{"field": "amount"})

	assert.Nil(t, base.Details)
	assert.Equal(t, "amount", withDetails.Details["field"])
}

func TestErrorCodes(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"Validation", Validation("x"), "VALIDATION_ERROR", 400},
		{"AmountOutOfRange", ErrAmountOutOfRange(1000, 5000), "AMOUNT_OUT_OF_RANGE", 400},
		{"ChannelInactive", ErrChannelInactive("OVO"), "CHANNEL_INACTIVE", 400},
		{"InvalidStatus", ErrInvalidStatus("x"), "INVALID_STATUS", 400},
		{"MalformedPayload", ErrMalformedPayload(nil), "MALFORMED_PAYLOAD", 400},
		{"UnknownProvider", ErrUnknownProvider("acme"), "UNKNOWN_PROVIDER", 404},
		{"InvalidAPIKey", ErrInvalidAPIKey(), "INVALID_API_KEY", 401},
		{"APIKeyInactive", ErrAPIKeyInactive(), "API_KEY_INACTIVE", 403},
		{"Forbidden", ErrForbidden(), "FORBIDDEN", 403},
		{"SandboxOnly", ErrSandboxOnly(), "SANDBOX_ONLY", 403},
		{"MerchantSuspended", ErrMerchantSuspended(), "MERCHANT_SUSPENDED", 403},
		{"PaymentNotFound", ErrPaymentNotFound(), "PAYMENT_NOT_FOUND", 404},
		{"DuplicateExternalID", ErrDuplicateExternalID("order-1"), "DUPLICATE_EXTERNAL_ID", 409},
		{"IdempotencyKeyReused", ErrIdempotencyKeyReused(), "IDEMPOTENCY_KEY_REUSED", 409},
		{"InvalidSignature", ErrInvalidSignature(), "INVALID_SIGNATURE", 401},
		{"Provider", ErrProvider(errors.New("timeout")), "PROVIDER_ERROR", 502},
		{"RateLimit", ErrRateLimitExceeded(30), "RATE_LIMIT_EXCEEDED", 429},
		{"InvalidCredentials", ErrInvalidCredentials(), "INVALID_CREDENTIALS", 401},
		{"UsernameExists", ErrUsernameExists(), "USERNAME_EXISTS", 409},
		{"InvalidToken", ErrInvalidToken(), "INVALID_TOKEN", 401},
		{"Internal", InternalError(errors.New("boom")), "INTERNAL_ERROR", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestRateLimitError_RetryAfterDetail(t *testing.T) {
	err := ErrRateLimitExceeded(42)
	assert.Equal(t, int64(42), err.Details["retry_after"])
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("API key")
	assert.Contains(t, err.Message, "API key")
	assert.Equal(t, "NOT_FOUND", err.Code)
}

func TestDatabaseError_KeepsCause(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))
}
