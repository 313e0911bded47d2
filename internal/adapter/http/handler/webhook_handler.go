package handler

import (
	"io"

	"qris-gateway/internal/adapter/http/dto"
	"qris-gateway/internal/adapter/http/middleware"
	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"
	"qris-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderSignature is the fallback callback signature header.
const HeaderSignature = "X-Signature"

// WebhookHandler receives provider callbacks.
type WebhookHandler struct {
	webhookSvc      ports.WebhookService
	signatureHeader string
	maxBodyBytes    int64
	log             zerolog.Logger
}

// NewWebhookHandler creates a WebhookHandler. signatureHeader is the
// configured provider's header; X-Signature is read when it is empty or absent.
func NewWebhookHandler(webhookSvc ports.WebhookService, signatureHeader string, maxBodyBytes int64, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		webhookSvc:      webhookSvc,
		signatureHeader: signatureHeader,
		maxBodyBytes:    maxBodyBytes,
		log:             log,
	}
}

// Receive handles POST /api/v1/webhooks/:provider. The raw body is passed
// through untouched because signatures are computed over exact bytes.
func (h *WebhookHandler) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		if middleware.IsBodyTooLarge(err) {
			response.Error(c, apperror.ErrPayloadTooLarge(h.maxBodyBytes))
			return
		}
		response.Error(c, apperror.ErrMalformedPayload(err))
		return
	}

	signature := ""
	if h.signatureHeader != "" {
		signature = c.GetHeader(h.signatureHeader)
	}
	if signature == "" {
		signature = c.GetHeader(HeaderSignature)
	}

	provider := c.Param("provider")
	result, err := h.webhookSvc.Handle(c.Request.Context(), ports.WebhookRequest{
		Provider:  provider,
		RawBody:   body,
		Signature: signature,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("provider", provider).Msg("webhook rejected")
		response.Error(c, err)
		return
	}

	ack := dto.WebhookAck{Received: true, Status: result.Status, Outcome: result.Outcome}
	if result.PaymentID != uuid.Nil {
		ack.PaymentID = result.PaymentID.String()
	}
	response.OK(c, ack)
}
