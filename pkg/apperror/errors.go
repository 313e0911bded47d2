package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
// Code is a stable string integrators can branch on.
type AppError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error carrying extra client-visible details.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Stable error codes.
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeAmountOutOfRange     = "AMOUNT_OUT_OF_RANGE"
	CodeChannelInactive      = "CHANNEL_INACTIVE"
	CodeInvalidStatus        = "INVALID_STATUS"
	CodeMalformedPayload     = "MALFORMED_PAYLOAD"
	CodeUnknownProvider      = "UNKNOWN_PROVIDER"
	CodeInvalidAPIKey        = "INVALID_API_KEY"
	CodeAPIKeyInactive       = "API_KEY_INACTIVE"
	CodeForbidden            = "FORBIDDEN"
	CodeSandboxOnly          = "SANDBOX_ONLY"
	CodeMerchantSuspended    = "MERCHANT_SUSPENDED"
	CodeNotFound             = "NOT_FOUND"
	CodePaymentNotFound      = "PAYMENT_NOT_FOUND"
	CodeDuplicateExternalID  = "DUPLICATE_EXTERNAL_ID"
	CodeIdempotencyKeyReused = "IDEMPOTENCY_KEY_REUSED"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodePayloadTooLarge      = "PAYLOAD_TOO_LARGE"
	CodeProviderError        = "PROVIDER_ERROR"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeUsernameExists       = "USERNAME_EXISTS"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeInternal             = "INTERNAL_ERROR"
)

// ---- Validation ----

// Validation returns a 400 validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// ValidationFields returns a 400 validation error with per-field messages.
func ValidationFields(fields map[string]string) *AppError {
	details := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	return New(CodeValidation, "Request validation failed", http.StatusBadRequest).WithDetails(details)
}

func ErrAmountOutOfRange(min, max int64) *AppError {
	return New(CodeAmountOutOfRange, fmt.Sprintf("Amount must be between %d and %d", min, max), http.StatusBadRequest).
		WithDetails(map[string]interface{}{"min": min, "max": max})
}

func ErrChannelInactive(code string) *AppError {
	return New(CodeChannelInactive, fmt.Sprintf("Payment channel %s is not active", code), http.StatusBadRequest)
}

func ErrInvalidStatus(message string) *AppError {
	return New(CodeInvalidStatus, message, http.StatusBadRequest)
}

func ErrMalformedPayload(err error) *AppError {
	return Wrap(CodeMalformedPayload, "Malformed webhook payload", http.StatusBadRequest, err)
}

func ErrUnknownProvider(name string) *AppError {
	return New(CodeUnknownProvider, fmt.Sprintf("Provider %q is not configured", name), http.StatusNotFound)
}

// ---- Authentication & Authorization ----

func ErrInvalidAPIKey() *AppError {
	return New(CodeInvalidAPIKey, "Invalid API key", http.StatusUnauthorized)
}

func ErrAPIKeyInactive() *AppError {
	return New(CodeAPIKeyInactive, "API key is inactive", http.StatusForbidden)
}

func ErrForbidden() *AppError {
	return New(CodeForbidden, "Resource belongs to another merchant", http.StatusForbidden)
}

func ErrSandboxOnly() *AppError {
	return New(CodeSandboxOnly, "Operation is only available with a sandbox API key", http.StatusForbidden)
}

func ErrMerchantSuspended() *AppError {
	return New(CodeMerchantSuspended, "Merchant account is suspended", http.StatusForbidden)
}

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrInvalidCredentials() *AppError {
	return New(CodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New(CodeUsernameExists, "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Payments ----

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrPaymentNotFound() *AppError {
	return New(CodePaymentNotFound, "Payment not found", http.StatusNotFound)
}

func ErrDuplicateExternalID(externalID string) *AppError {
	return New(CodeDuplicateExternalID, fmt.Sprintf("Payment with external_id %q already exists", externalID), http.StatusConflict)
}

func ErrIdempotencyKeyReused() *AppError {
	return New(CodeIdempotencyKeyReused, "Idempotency key was used by another merchant", http.StatusConflict)
}

func ErrProvider(err error) *AppError {
	return Wrap(CodeProviderError, "Payment provider unavailable", http.StatusBadGateway, err)
}

// ---- Rate Limiting ----

func ErrRateLimitExceeded(retryAfter int64) *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests).
		WithDetails(map[string]interface{}{"retry_after": retryAfter})
}

func ErrPayloadTooLarge(limit int64) *AppError {
	return New(CodePayloadTooLarge, fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

// ---- System ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap(CodeInternal, "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a 500.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}
