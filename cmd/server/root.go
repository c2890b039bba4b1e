package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerline/billing/internal/config"
	"github.com/ledgerline/billing/internal/logger"
)

// cfg is loaded once the command line is parsed.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Billing services: clients, catalog, invoices, currencies and payments",
	Long: `server runs the billing services. Each role (auth, currency, catalog,
customer, invoice, settlement) can run in its own process, or all of them
together in one.

Configuration comes from the environment, optionally from a .env file in the
working directory. JWT_SECRET is required.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
			return fmt.Errorf("setup logger: %w", err)
		}
		return nil
	},
}
