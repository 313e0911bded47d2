package handler

import (
	"strconv"
	"strings"

	"qris-gateway/internal/adapter/http/dto"
	"qris-gateway/internal/adapter/http/middleware"
	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"
	"qris-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client idempotency key.
const HeaderIdempotencyKey = "X-Idempotency-Key"

// PaymentHandler handles payment intent endpoints.
type PaymentHandler struct {
	paymentSvc ports.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc ports.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

// Create handles POST /api/v1/payments.
func (h *PaymentHandler) Create(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}

	key, appErr := idempotencyKey(c.GetHeader(HeaderIdempotencyKey), req.IdempotencyKey)
	if appErr != nil {
		response.Error(c, appErr)
		return
	}

	result, err := h.paymentSvc.Create(c.Request.Context(), caller, req.ToPort(key))
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Replayed {
		response.Replayed(c, result.Payment)
		return
	}
	response.Created(c, result.Payment)
}

// idempotencyKey reconciles the header and body keys. Both may be set only
// when they agree.
func idempotencyKey(header string, body *string) (*string, *apperror.AppError) {
	header = strings.TrimSpace(header)
	if header != "" {
		if len(header) > 100 || !dto.IsSafeID(header) {
			return nil, apperror.ValidationFields(map[string]string{
				"idempotency_key": "must be at most 100 characters of letters, digits, '_', '-', '.', ':'",
			})
		}
	}

	switch {
	case header != "" && body != nil && *body != header:
		return nil, apperror.ValidationFields(map[string]string{
			"idempotency_key": "header and body idempotency keys differ",
		})
	case header != "":
		return &header, nil
	case body != nil && *body != "":
		return body, nil
	}
	return nil, nil
}

// List handles GET /api/v1/payments.
func (h *PaymentHandler) List(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			response.Error(c, apperror.ValidationFields(map[string]string{"limit": "must be a positive integer"}))
			return
		}
		limit = v
	}

	var status *domain.PaymentStatus
	if s := c.Query("status"); s != "" {
		st := domain.PaymentStatus(strings.ToLower(s))
		status = &st
	}

	payments, effective, err := h.paymentSvc.List(c.Request.Context(), caller, limit, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	if payments == nil {
		payments = []domain.PaymentIntent{}
	}

	response.List(c, payments, dto.ListMeta{Count: len(payments), Limit: effective})
}

// Get handles GET /api/v1/payments/:id. The id may be the intent UUID or
// the merchant's external_id.
func (h *PaymentHandler) Get(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	payment, err := h.paymentSvc.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payment)
}

// Status handles GET /api/v1/payments/:id/status.
func (h *PaymentHandler) Status(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	payment, err := h.paymentSvc.CheckStatus(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewPaymentStatusResponse(payment))
}

// Simulate handles POST /api/v1/payments/:id/simulate (sandbox only).
func (h *PaymentHandler) Simulate(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidAPIKey())
		return
	}

	var req dto.SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}

	status := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	payment, err := h.paymentSvc.Simulate(c.Request.Context(), caller, c.Param("id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, payment)
}
