// Package server assembles the services a process runs from its
// configuration and serves them over HTTP.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/billing/internal/api"
	"github.com/ledgerline/billing/internal/auth"
	"github.com/ledgerline/billing/internal/catalog"
	"github.com/ledgerline/billing/internal/config"
	"github.com/ledgerline/billing/internal/currency"
	"github.com/ledgerline/billing/internal/customer"
	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/ingestion"
	"github.com/ledgerline/billing/internal/invoice"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/metrics"
	"github.com/ledgerline/billing/internal/peer"
	"github.com/ledgerline/billing/internal/repository"
	"github.com/ledgerline/billing/internal/settlement"
)

const shutdownTimeout = 10 * time.Second

// Server is one process running one role or all of them.
type Server struct {
	Handler http.Handler
	Tokens  *auth.Tokens

	cfg *config.Config
	dbs []*sql.DB
	log zerolog.Logger
}

// New opens the databases of every role cfg runs, seeds them when asked to
// and builds the router. Each role owns its own database file.
func New(ctx context.Context, cfg *config.Config) (_ *Server, err error) {
	s := &Server{
		cfg:    cfg,
		Tokens: auth.NewTokens(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, clock.WallClock),
		log:    logger.WithComponent("server"),
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	m := metrics.New()
	opts := peer.Options{
		Timeout:    cfg.PeerTimeout,
		Attempts:   cfg.PeerRetryAttempts,
		RetryDelay: cfg.PeerRetryDelay,
		Metrics:    m,
	}
	customers := peer.NewCustomerClient(cfg.ClientServiceURL, opts)
	products := peer.NewCatalogClient(cfg.CatalogServiceURL, opts)
	currencies := peer.NewCurrencyClient(cfg.CurrencyServiceURL, opts)
	invoices := peer.NewInvoiceClient(cfg.InvoiceServiceURL, opts)

	var svc api.Services

	if cfg.Runs(config.ServiceAuth) {
		db, err := s.open(config.ServiceAuth)
		if err != nil {
			return nil, err
		}
		svc.Auth = auth.NewService(repository.NewUserRepo(db), s.Tokens)
		if cfg.Seed {
			err := svc.Auth.Seed(ctx,
				auth.Account{Username: cfg.AdminUsername, Password: cfg.AdminPassword, Roles: []string{domain.RoleAdmin, domain.RoleUser}},
				auth.Account{Username: cfg.UserUsername, Password: cfg.UserPassword, Roles: []string{domain.RoleUser}},
			)
			if err != nil {
				return nil, errors.Annotate(err, "seed users")
			}
		}
	}

	if cfg.Runs(config.ServiceCurrency) {
		db, err := s.open(config.ServiceCurrency)
		if err != nil {
			return nil, err
		}
		svc.Currencies = currency.NewService(repository.NewCurrencyRepo(db))
		if cfg.Seed {
			if err := svc.Currencies.Seed(ctx, cfg.ReferenceCurrency); err != nil {
				return nil, errors.Annotate(err, "seed currencies")
			}
		}
	}

	if cfg.Runs(config.ServiceCatalog) {
		db, err := s.open(config.ServiceCatalog)
		if err != nil {
			return nil, err
		}
		svc.Catalog = catalog.NewService(repository.NewProductRepo(db), repository.NewCategoryRepo(db))
		if cfg.Seed {
			if err := svc.Catalog.Seed(ctx); err != nil {
				return nil, errors.Annotate(err, "seed catalog")
			}
		}
	}

	if cfg.Runs(config.ServiceCustomer) {
		db, err := s.open(config.ServiceCustomer)
		if err != nil {
			return nil, err
		}
		svc.Customers = customer.NewService(repository.NewClientRepo(db), invoices, currencies, cfg.ReferenceCurrency)
		if cfg.Seed {
			if err := svc.Customers.Seed(ctx); err != nil {
				return nil, errors.Annotate(err, "seed clients")
			}
		}
	}

	if cfg.Runs(config.ServiceInvoice) {
		db, err := s.open(config.ServiceInvoice)
		if err != nil {
			return nil, err
		}
		repo := repository.NewInvoiceRepo(db)
		svc.Ledger = invoice.NewLedger(repo, customers, products)
		svc.Creator = invoice.NewCreator(repo, customers, products, clock.WallClock, m)
	}

	if cfg.Runs(config.ServiceSettlement) {
		db, err := s.open(config.ServiceSettlement)
		if err != nil {
			return nil, err
		}
		payments := repository.NewPaymentRepo(db)
		svc.Settlement = settlement.NewCoordinator(
			payments, invoices, currencies, cfg.ReferenceCurrency, clock.WallClock, m)
		svc.Auditor = settlement.NewAuditor(svc.Settlement, repository.NewDiscrepancyRepo(db))
		svc.Imports = ingestion.NewService(repository.NewStatementRepo(db), payments, svc.Settlement, clock.WallClock)
	}

	s.Handler = api.NewRouter(s.Tokens, m, svc)
	return s, nil
}

// open opens the database of role. A process running every role keeps one
// file per role next to DBPath.
func (s *Server) open(role string) (*sql.DB, error) {
	path := s.cfg.DBPath
	if s.cfg.Service == config.ServiceAll {
		ext := filepath.Ext(path)
		path = strings.TrimSuffix(path, ext) + "-" + role + ext
	}
	s.log.Info().Str("role", role).Str("path", path).Msg("opening database")
	db, err := repository.InitDB(path)
	if err != nil {
		return nil, errors.Annotatef(err, "%s database", role)
	}
	s.dbs = append(s.dbs, db)
	return db, nil
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("service", s.cfg.Service).Str("addr", srv.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) Close() error {
	var first error
	for _, db := range s.dbs {
		if err := db.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.dbs = nil
	return first
}
