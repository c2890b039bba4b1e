package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ledgerline/billing/internal/config"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve [role]",
	Short: "Serve one role, or all of them",
	Long: `Serve one role over HTTP. Without a role the SERVICE variable decides,
and "all" mounts every role on one port. Peers are always called over HTTP,
at the *_SERVICE_URL addresses.`,
	Example: `  # Everything on :8080
  server serve all

  # The invoice service alone, calling its peers elsewhere
  CLIENT_SERVICE_URL=http://clients:8080 CATALOG_SERVICE_URL=http://catalog:8080 \
    server serve invoice --port 8084 --db invoice.db`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: append([]string{config.ServiceAll}, config.Services...),
	RunE:      runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "Port to listen on (default from PORT)")
	serveCmd.Flags().String("db", "", "SQLite database file (default from DB_PATH)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	if len(args) == 1 {
		cfg.Service = args[0]
	}
	if port, _ := cmd.Flags().GetString("port"); port != "" {
		setPort(cfg, port)
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	log.Info().
		Str("service", cfg.Service).
		Str("port", cfg.Port).
		Str("reference_currency", cfg.ReferenceCurrency).
		Msg("starting")

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// setPort moves the process to port, along with the peer addresses that
// still point at the old local port.
func setPort(c *config.Config, port string) {
	old := "http://localhost:" + c.Port
	for _, u := range []*string{&c.ClientServiceURL, &c.CatalogServiceURL, &c.CurrencyServiceURL, &c.InvoiceServiceURL} {
		if *u == old || strings.HasPrefix(*u, old+"/") {
			*u = "http://localhost:" + port + strings.TrimPrefix(*u, old)
		}
	}
	c.Port = port
}
