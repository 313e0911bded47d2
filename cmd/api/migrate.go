package main

import (
	"context"
	"errors"
	"fmt"

	"qris-gateway/config"
	pgStorage "qris-gateway/internal/adapter/storage/postgres"
	"qris-gateway/internal/service"
	"qris-gateway/pkg/logger"

	"github.com/spf13/cobra"
)

func migrateCmd(configPath *string) *cobra.Command {
	var skipSeed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema and seed the default payment channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Database.Driver != config.DriverPostgres {
				return errors.New("migrate requires database.driver=postgres")
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
			if err != nil {
				return fmt.Errorf("connect postgres: %w", err)
			}
			defer pool.Close()

			if err := pgStorage.Migrate(ctx, pool); err != nil {
				return err
			}
			log.Info().Msg("schema applied")

			if skipSeed {
				return nil
			}
			_, err = service.NewChannelService(pgStorage.NewChannelRepo(pool), log).Seed(ctx)
			return err
		},
	}

	cmd.Flags().BoolVar(&skipSeed, "skip-seed", false, "Only apply the schema")
	return cmd
}
