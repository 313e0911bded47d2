package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"qris-gateway/config"
	httpHandler "qris-gateway/internal/adapter/http/handler"
	"qris-gateway/internal/adapter/messaging/kafka"
	"qris-gateway/internal/adapter/provider/midtrans"
	"qris-gateway/internal/adapter/provider/tripay"
	"qris-gateway/internal/adapter/storage/memory"
	redisStorage "qris-gateway/internal/adapter/storage/redis"
	"qris-gateway/internal/core/ports"
	"qris-gateway/internal/service"
	"qris-gateway/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, expiry sweeper and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("driver", cfg.Database.Driver).
		Str("provider", cfg.Provider.Name).
		Msg("Starting QRIS gateway")

	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.close()
	healthCheckers := []ports.HealthChecker{store.health}

	// Core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		return fmt.Errorf("init encryption: %w", err)
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Redis-backed stores, or their in-process equivalents.
	var idempCache ports.IdempotencyCache = memory.NewIdempotencyCache()
	var rateLimitStore ports.RateLimitStore
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		idempCache = redisStorage.NewIdempotencyCache(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
		if cfg.RateLimit.Backend == config.RateLimitRedis {
			rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		}
	}
	if rateLimitStore == nil {
		memStore := memory.NewRateLimitStore()
		go memStore.RunSweeper(ctx, cfg.RateLimit.SweepInterval, cfg.RateLimit.SweepBudget)
		rateLimitStore = memStore
	}

	publisher, err := newPublisher(cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	provider := newProvider(cfg.Provider, sigSvc)
	signatureHeader := ""
	if provider != nil {
		signatureHeader = provider.SignatureHeader()
		log.Info().Str("provider", provider.Name()).Str("failure_policy", cfg.Provider.FailurePolicy).Msg("live provider enabled")
	} else {
		log.Info().Msg("no provider configured, live keys get sandbox instructions")
	}

	// Business services
	channelSvc := service.NewChannelService(store.channels, logger.Component(log, "channels"))
	if _, err := channelSvc.Seed(ctx); err != nil {
		return err
	}

	callbackSvc := service.NewCallbackService(
		store.merchants,
		store.callbacks,
		encSvc,
		sigSvc,
		&http.Client{Timeout: cfg.Callback.Timeout},
		cfg.Callback.RetryDelay,
		logger.Component(log, "callbacks"),
	)
	defer callbackSvc.Shutdown()

	paymentSvc := service.NewPaymentService(
		store.payments,
		channelSvc,
		service.NewFeeCalculator(),
		service.NewSandboxQRGenerator(cfg.Payment.MerchantName, cfg.Payment.MerchantCity),
		provider,
		idempCache,
		publisher,
		callbackSvc,
		service.PaymentServiceOptions{
			FailurePolicy:        cfg.Provider.FailurePolicy,
			ListMaxLimit:         cfg.Payment.ListMaxLimit,
			DefaultExpiryMinutes: int(cfg.Payment.DefaultExpiry / time.Minute),
		},
		logger.Component(log, "payments"),
	)
	webhookSvc := service.NewWebhookService(
		provider,
		cfg.Provider.RequireWebhookSignature,
		store.webhookLogs,
		store.payments,
		paymentSvc,
		logger.Component(log, "webhooks"),
	)
	authSvc := service.NewAuthService(store.merchants, store.apiKeys, store.transactor, hashSvc, encSvc, tokenSvc, log)
	apiKeySvc := service.NewAPIKeyService(store.apiKeys, store.merchants, log)
	merchantSvc := service.NewMerchantService(store.merchants, encSvc)
	reportingSvc := service.NewReportingService(store.payments)
	auditSvc := service.NewAuditService(store.audit, logger.Component(log, "audit"))

	worker := service.NewExpiryWorker(paymentSvc, cfg.Payment.ExpirySweepInterval, cfg.Payment.ExpirySweepBatch, log)
	go worker.Run(ctx)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:         authSvc,
		PaymentSvc:      paymentSvc,
		WebhookSvc:      webhookSvc,
		ChannelSvc:      channelSvc,
		APIKeySvc:       apiKeySvc,
		MerchantSvc:     merchantSvc,
		ReportingSvc:    reportingSvc,
		TokenSvc:        tokenSvc,
		AuditSvc:        auditSvc,
		RateLimitStore:  rateLimitStore,
		HealthCheckers:  healthCheckers,
		SignatureHeader: signatureHeader,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		TrustedProxies:  cfg.Server.TrustedProxies,
		Mode:            cfg.Server.Mode,
		Logger:          log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
	return nil
}

func newPublisher(cfg config.KafkaConfig, log zerolog.Logger) (ports.EventPublisher, error) {
	if !cfg.Enabled {
		return kafka.NopPublisher{}, nil
	}
	pub, err := kafka.NewPublisher(cfg, logger.Component(log, "kafka"))
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("Kafka publisher ready")
	return pub, nil
}

// newProvider returns nil when no live provider is configured.
func newProvider(cfg config.ProviderConfig, sigSvc ports.SignatureService) ports.PaymentProvider {
	switch cfg.Name {
	case tripay.Name:
		return tripay.New(tripay.Config{
			BaseURL:      cfg.BaseURL,
			APIKey:       cfg.APIKey,
			PrivateKey:   cfg.PrivateKey,
			MerchantCode: cfg.MerchantCode,
			Timeout:      cfg.Timeout,
		}, nil, sigSvc)
	case midtrans.Name:
		return midtrans.New(midtrans.Config{
			ServerKey:  cfg.ServerKey,
			Production: cfg.Production,
			Timeout:    cfg.Timeout,
		})
	}
	return nil
}
