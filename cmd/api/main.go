package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "qris-gateway",
		Short:         "QRIS payment gateway API server and admin tooling",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default ./config.yaml or ./config/config.yaml)")

	serveCommand := serveCmd(&configPath)
	// Running the binary without a subcommand starts the server.
	rootCmd.RunE = serveCommand.RunE

	rootCmd.AddCommand(serveCommand)
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(channelsCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
