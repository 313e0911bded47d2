package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"qris-gateway/internal/core/ports"
	"qris-gateway/pkg/apperror"
	"qris-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Route classes. Every limited route belongs to exactly one.
const (
	ClassAuth      = "auth"
	ClassAPI       = "api"
	ClassWebhook   = "webhook"
	ClassDashboard = "dashboard"
)

// RateLimitRule defines a fixed-window limit for a route class.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns the per-class limits.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		ClassAuth:      {Limit: 10, Window: time.Minute},
		ClassAPI:       {Limit: 120, Window: time.Minute},
		ClassWebhook:   {Limit: 300, Window: time.Minute},
		ClassDashboard: {Limit: 60, Window: time.Minute},
	}
}

// RateLimiter counts requests per (class, identity) and rejects with 429
// once the window is exhausted. Store errors let the request through.
func RateLimiter(store ports.RateLimitStore, class string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return rateLimiter(store, class, rule, log, time.Now)
}

func rateLimiter(store ports.RateLimitStore, class string, rule RateLimitRule, log zerolog.Logger, now func() time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := class + ":" + identity(c)

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("class", class).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded(retryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}

// identity is the API key when present, else the client IP. Keys are
// hashed so counters never hold a usable credential.
func identity(c *gin.Context) string {
	if key := c.GetHeader(HeaderAPIKey); key != "" {
		sum := sha256.Sum256([]byte(key))
		return "key:" + hex.EncodeToString(sum[:8])
	}
	return "ip:" + c.ClientIP()
}
