package handler

import (
	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// ChannelHandler serves the payment channel catalog.
type ChannelHandler struct {
	channelSvc ports.ChannelService
}

func NewChannelHandler(channelSvc ports.ChannelService) *ChannelHandler {
	return &ChannelHandler{channelSvc: channelSvc}
}

// ListActive handles GET /api/v1/payment-channels.
func (h *ChannelHandler) ListActive(c *gin.Context) {
	channels, err := h.channelSvc.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if channels == nil {
		channels = []domain.PaymentChannel{}
	}
	response.OK(c, channels)
}
