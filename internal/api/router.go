// Package api exposes the billing services over REST. Every role mounts its
// routes on the same chi router so a single process can serve one role or
// all of them.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerline/billing/internal/auth"
	"github.com/ledgerline/billing/internal/catalog"
	"github.com/ledgerline/billing/internal/currency"
	"github.com/ledgerline/billing/internal/customer"
	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/ingestion"
	"github.com/ledgerline/billing/internal/invoice"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/metrics"
	"github.com/ledgerline/billing/internal/settlement"
)

// Services holds the services a process runs. Routes are mounted only for
// the non-nil ones.
type Services struct {
	Auth       *auth.Service
	Currencies *currency.Service
	Catalog    *catalog.Service
	Customers  *customer.Service
	Ledger     *invoice.Ledger
	Creator    *invoice.Creator
	Settlement *settlement.Coordinator
	Auditor    *settlement.Auditor
	Imports    *ingestion.Service
}

// Paths reachable without a token.
var openPaths = []string{"/auth/login", "/users/refreshToken", "/metrics", "/health"}

var (
	readers = auth.RequireAny(domain.RoleUser, domain.RoleAdmin)
	admins  = auth.RequireAny(domain.RoleAdmin)
)

// NewRouter creates the Chi router with the routes of every service in svc.
func NewRouter(tokens *auth.Tokens, m *metrics.Collector, svc Services) http.Handler {
	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(accessLog(logger.WithComponent("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))
	r.Use(auth.Authenticate(tokens, openPaths...))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(m))

	if svc.Auth != nil {
		h := &authHandlers{svc: svc.Auth}
		h.routes(r)
	}
	if svc.Currencies != nil {
		h := &currencyHandlers{svc: svc.Currencies}
		r.Route("/currencies", h.routes)
	}
	if svc.Catalog != nil {
		h := &catalogHandlers{svc: svc.Catalog}
		r.Route("/products", h.productRoutes)
		r.Route("/categories", h.categoryRoutes)
	}
	if svc.Customers != nil {
		h := &customerHandlers{svc: svc.Customers}
		r.Route("/clients", h.routes)
	}
	if svc.Ledger != nil && svc.Creator != nil {
		h := &invoiceHandlers{ledger: svc.Ledger, creator: svc.Creator}
		r.Route("/invoices", h.routes)
	}
	if svc.Settlement != nil {
		h := &settlementHandlers{svc: svc.Settlement}
		sh := &statementHandlers{imports: svc.Imports, auditor: svc.Auditor}
		r.Route("/payments", func(r chi.Router) {
			sh.routes(r)
			h.routes(r)
		})
	}

	return r
}
