package handler

import (
	"qris-gateway/internal/adapter/http/middleware"
	"qris-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes int64 = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	PaymentSvc     ports.PaymentService
	WebhookSvc     ports.WebhookService
	ChannelSvc     ports.ChannelService
	APIKeySvc      ports.APIKeyService
	MerchantSvc    ports.MerchantService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	AuditSvc       ports.AuditService   // nil = audit logging disabled
	RateLimitStore ports.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker

	// SignatureHeader is the configured provider's callback signature header.
	SignatureHeader string
	MaxBodyBytes    int64
	TrustedProxies  []string
	Mode            string // gin mode; release when empty
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode == "" {
		deps.Mode = gin.ReleaseMode
	}
	gin.SetMode(deps.Mode)
	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		deps.Logger.Warn().Err(err).Msg("invalid trusted proxies, trusting none")
		_ = r.SetTrustedProxies(nil)
	}

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()
	rl := func(class string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, class, rules[class], deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth", rl(middleware.ClassAuth))
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	webhookHandler := NewWebhookHandler(deps.WebhookSvc, deps.SignatureHeader, maxBody, deps.Logger)
	v1.POST("/webhooks/:provider", rl(middleware.ClassWebhook), webhookHandler.Receive)

	// --- API-key routes (merchant server-to-server) ---
	// The limiter runs before authentication so unauthenticated floods are
	// counted too.
	keyAuth := middleware.APIKeyAuth(deps.APIKeySvc, deps.Logger)
	api := v1.Group("", rl(middleware.ClassAPI), keyAuth)

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	payments := api.Group("/payments")
	{
		payments.POST("", paymentHandler.Create)
		payments.GET("", paymentHandler.List)
		payments.GET("/:id", paymentHandler.Get)
		payments.GET("/:id/status", paymentHandler.Status)
		payments.POST("/:id/simulate", paymentHandler.Simulate)
	}

	channelHandler := NewChannelHandler(deps.ChannelSvc)
	api.GET("/payment-channels", channelHandler.ListActive)

	// --- JWT routes (dashboard) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	dash := v1.Group("", rl(middleware.ClassDashboard), jwtAuth)

	merchantHandler := NewMerchantHandler(deps.MerchantSvc)
	merchants := dash.Group("/merchants/me")
	{
		merchants.GET("", merchantHandler.GetProfile)
		merchants.POST("/rotate-callback-secret", merchantHandler.RotateCallbackSecret)
	}

	apiKeyHandler := NewAPIKeyHandler(deps.APIKeySvc)
	keys := dash.Group("/api-keys")
	{
		keys.POST("", apiKeyHandler.Create)
		keys.GET("", apiKeyHandler.List)
		keys.DELETE("/:id", apiKeyHandler.Revoke)
	}

	dashboardHandler := NewDashboardHandler(deps.ReportingSvc)
	dash.GET("/dashboard/stats", dashboardHandler.GetStats)

	return r
}
