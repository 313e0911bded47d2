package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
	idParam      string
}

// auditRoutes maps "METHOD route-template" to the audited action.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/auth/register":                       {domain.AuditActionRegister, "merchant", ""},
	"POST /api/v1/auth/login":                          {domain.AuditActionLogin, "session", ""},
	"POST /api/v1/payments":                            {domain.AuditActionCreatePayment, "payment", ""},
	"POST /api/v1/payments/:id/simulate":               {domain.AuditActionSimulatePayment, "payment", "id"},
	"POST /api/v1/api-keys":                            {domain.AuditActionCreateAPIKey, "api_key", ""},
	"DELETE /api/v1/api-keys/:id":                      {domain.AuditActionRevokeAPIKey, "api_key", "id"},
	"POST /api/v1/merchants/me/rotate-callback-secret": {domain.AuditActionRotateCallback, "merchant", ""},
}

// AuditLog records successful write operations after the handler ran.
// Idempotent replays (200 on create) are audited like the original call.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}

		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var merchantID *uuid.UUID
		if id, ok := MerchantIDFrom(c); ok {
			merchantID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			MerchantID:   merchantID,
			Action:       route.action,
			ResourceType: route.resourceType,
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		}
		if route.idParam != "" {
			entry.ResourceID = c.Param(route.idParam)
		}
		auditSvc.Log(c.Request.Context(), entry)
	}
}
