package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"qris-gateway/config"
	pgStorage "qris-gateway/internal/adapter/storage/postgres"
	"qris-gateway/internal/core/domain"
	"qris-gateway/internal/core/ports"
	"qris-gateway/internal/service"
	"qris-gateway/pkg/logger"

	"github.com/spf13/cobra"
)

func channelsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "Inspect and toggle payment channels",
	}
	cmd.AddCommand(channelsListCmd(configPath))
	cmd.AddCommand(channelsSetActiveCmd(configPath))
	return cmd
}

func channelsListCmd(configPath *string) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List payment channels with their fee schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withChannelService(cmd, *configPath, func(ctx context.Context, svc ports.ChannelService) error {
				var (
					channels []domain.PaymentChannel
					err      error
				)
				if activeOnly {
					channels, err = svc.ListActive(ctx)
				} else {
					channels, err = svc.List(ctx)
				}
				if err != nil {
					return err
				}
				return printChannels(cmd.OutOrStdout(), channels)
			})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Only show active channels")
	return cmd
}

func channelsSetActiveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "set-active <code> <true|false>",
		Short: "Enable or disable a payment channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			active, err := strconv.ParseBool(args[1])
			if err != nil {
				return fmt.Errorf("invalid active flag %q: %w", args[1], err)
			}
			return withChannelService(cmd, *configPath, func(ctx context.Context, svc ports.ChannelService) error {
				if err := svc.SetActive(ctx, args[0], active); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is_active=%t\n", args[0], active)
				return nil
			})
		},
	}
}

func withChannelService(cmd *cobra.Command, configPath string, fn func(context.Context, ports.ChannelService) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return errors.New("channel administration requires database.driver=postgres")
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

	return fn(ctx, service.NewChannelService(pgStorage.NewChannelRepo(pool), log))
}

func printChannels(out io.Writer, channels []domain.PaymentChannel) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tTYPE\tACTIVE\tFEE_BPS\tFEE_FLAT\tMIN\tMAX")
	for _, ch := range channels {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%d\t%d\t%d\n",
			ch.Code, ch.Name, ch.Type, ch.IsActive, ch.Fee.BasisPoints, ch.Fee.Flat, ch.MinAmount, ch.MaxAmount)
	}
	return w.Flush()
}
