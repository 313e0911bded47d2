package handler

import (
	"qris-gateway/internal/adapter/http/dto"
	"qris-gateway/internal/adapter/http/middleware"
	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"
	"qris-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// MerchantHandler handles merchant self-service endpoints.
type MerchantHandler struct {
	merchantSvc ports.MerchantService
}

// NewMerchantHandler creates a new merchant handler.
func NewMerchantHandler(merchantSvc ports.MerchantService) *MerchantHandler {
	return &MerchantHandler{merchantSvc: merchantSvc}
}

// GetProfile returns the authenticated merchant's profile.
func (h *MerchantHandler) GetProfile(c *gin.Context) {
	merchantID, ok := middleware.MerchantIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	profile, err := h.merchantSvc.GetProfile(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"id":            profile.ID.String(),
		"username":      profile.Username,
		"merchant_name": profile.MerchantName,
		"status":        string(profile.Status),
		"created_at":    profile.CreatedAt,
	})
}

// RotateCallbackSecret issues a new secret for signing merchant callbacks.
func (h *MerchantHandler) RotateCallbackSecret(c *gin.Context) {
	merchantID, ok := middleware.MerchantIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	secret, err := h.merchantSvc.RotateCallbackSecret(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.RotateSecretResponse{CallbackSecret: secret})
}
