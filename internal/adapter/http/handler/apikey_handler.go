package handler

import (
	"qris-gateway/internal/adapter/http/dto"
	"qris-gateway/internal/adapter/http/middleware"
	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"
	"qris-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIKeyHandler lets a dashboard session manage its merchant's API keys.
type APIKeyHandler struct {
	keySvc ports.APIKeyService
}

func NewAPIKeyHandler(keySvc ports.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{keySvc: keySvc}
}

// Create handles POST /api/v1/api-keys.
func (h *APIKeyHandler) Create(c *gin.Context) {
	merchantID, ok := middleware.MerchantIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	issued, err := h.keySvc.Create(c.Request.Context(), merchantID, req.Name, domain.Mode(req.Mode))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.CreateAPIKeyResponse{APIKey: issued.Key, Key: issued.Plaintext})
}

// List handles GET /api/v1/api-keys.
func (h *APIKeyHandler) List(c *gin.Context) {
	merchantID, ok := middleware.MerchantIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	keys, err := h.keySvc.List(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if keys == nil {
		keys = []domain.APIKey{}
	}
	response.OK(c, keys)
}

// Revoke handles DELETE /api/v1/api-keys/:id.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	merchantID, ok := middleware.MerchantIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("API key"))
		return
	}

	if err := h.keySvc.Revoke(c.Request.Context(), merchantID, keyID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": keyID.String(), "is_active": false})
}
