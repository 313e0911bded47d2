package main

import (
	"context"
	"fmt"

	"qris-gateway/config"
	"qris-gateway/internal/adapter/storage/memory"
	pgStorage "qris-gateway/internal/adapter/storage/postgres"
	"qris-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// storage bundles the repositories of one database driver.
type storage struct {
	payments    ports.PaymentRepository
	channels    ports.ChannelRepository
	merchants   ports.MerchantRepository
	apiKeys     ports.APIKeyRepository
	webhookLogs ports.WebhookLogRepository
	callbacks   ports.CallbackRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	health      ports.HealthChecker
	close       func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Database.Driver == config.DriverMemory {
		log.Warn().Msg("using in-memory storage, data is lost on restart")
		return &storage{
			payments:    memory.NewPaymentRepo(),
			channels:    memory.NewChannelRepo(),
			merchants:   memory.NewMerchantRepo(),
			apiKeys:     memory.NewAPIKeyRepo(),
			webhookLogs: memory.NewWebhookLogRepo(),
			callbacks:   memory.NewCallbackRepo(),
			audit:       memory.NewAuditRepo(),
			transactor:  memory.NewTransactor(),
			health:      memory.HealthCheck{},
			close:       func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		log.Info().Msg("schema applied")
	}

	return &storage{
		payments:    pgStorage.NewPaymentRepo(pool),
		channels:    pgStorage.NewChannelRepo(pool),
		merchants:   pgStorage.NewMerchantRepo(pool),
		apiKeys:     pgStorage.NewAPIKeyRepo(pool),
		webhookLogs: pgStorage.NewWebhookLogRepository(pool),
		callbacks:   pgStorage.NewCallbackRepository(pool),
		audit:       pgStorage.NewAuditRepository(pool),
		transactor:  pgStorage.NewTransactor(pool),
		health:      pgStorage.NewHealthCheck(pool),
		close:       pool.Close,
	}, nil
}
