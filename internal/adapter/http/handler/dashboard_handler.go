package handler

import (
	"qris-gateway/internal/adapter/http/middleware"
	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"
	"qris-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// DashboardHandler handles dashboard reporting endpoints.
type DashboardHandler struct {
	reportingSvc ports.ReportingService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(reportingSvc ports.ReportingService) *DashboardHandler {
	return &DashboardHandler{reportingSvc: reportingSvc}
}

// GetStats handles GET /api/v1/dashboard/stats?period=day|week|month|all.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	merchantID, ok := middleware.MerchantIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	period := c.DefaultQuery("period", "all")
	stats, err := h.reportingSvc.GetDashboardStats(c.Request.Context(), merchantID, period)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{
		"period": period,
		"stats":  stats,
	})
}
