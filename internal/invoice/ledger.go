// Package invoice owns invoices and their line items: the ledger that keeps
// totals and status consistent, its reporting queries, and the workflow that
// creates invoices against the catalog.
package invoice

import (
	"context"
	"math"
	"strings"

	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/repository"
)

// CustomerLookup resolves clients for display.
type CustomerLookup interface {
	GetClient(ctx context.Context, id int64) (*domain.Client, error)
}

// ProductLookup resolves products for display.
type ProductLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

// Ledger is the Invoice Ledger.
type Ledger struct {
	repo      *repository.InvoiceRepo
	customers CustomerLookup
	products  ProductLookup
	log       zerolog.Logger
}

func NewLedger(repo *repository.InvoiceRepo, customers CustomerLookup, products ProductLookup) *Ledger {
	return &Ledger{
		repo:      repo,
		customers: customers,
		products:  products,
		log:       logger.WithComponent("invoice"),
	}
}

// Get returns the invoice with its client and products resolved.
func (l *Ledger) Get(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	invs := []domain.Invoice{*inv}
	l.enrich(ctx, invs)
	return &invs[0], nil
}

// Page is one page of invoices.
type Page struct {
	Invoices []domain.Invoice `json:"invoices"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	Size     int              `json:"size"`
}

func (l *Ledger) List(ctx context.Context, page, size int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	invs, total, err := l.repo.Find(ctx, repository.InvoiceFilter{Page: page, Limit: size})
	if err != nil {
		return nil, err
	}
	invs = nonNil(invs)
	l.enrich(ctx, invs)
	return &Page{Invoices: invs, Total: total, Page: page, Size: size}, nil
}

// UpdateRequest replaces an invoice's client and lines.
type UpdateRequest struct {
	ClientID int64             `json:"client_id"`
	Lines    []domain.LineItem `json:"lines"`
}

// Update replaces the client and line items of invoice id and recomputes its
// derived fields. The paid amount is kept; stock is not touched.
func (l *Ledger) Update(ctx context.Context, id int64, req UpdateRequest) (*domain.Invoice, error) {
	if req.ClientID <= 0 {
		return nil, errors.NotValidf("client id %d", req.ClientID)
	}
	if len(req.Lines) == 0 {
		return nil, errors.NotValidf("invoice without lines")
	}
	for i, line := range req.Lines {
		if line.ProductID <= 0 {
			return nil, errors.NotValidf("line %d: product id %d", i, line.ProductID)
		}
		if line.Quantity <= 0 || line.Quantity > maxQuantity {
			return nil, errors.NotValidf("line %d: quantity %d", i, line.Quantity)
		}
		if line.Price < 0 {
			return nil, errors.NotValidf("line %d: price %v", i, line.Price)
		}
	}

	inv, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.ClientID = req.ClientID
	inv.Lines = make([]domain.LineItem, len(req.Lines))
	for i, line := range req.Lines {
		inv.Lines[i] = domain.LineItem{ProductID: line.ProductID, Quantity: line.Quantity, Price: line.Price}
	}
	inv.ComputeTotals()

	if err := l.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	l.log.Info().Int64("invoice", id).Float64("total", inv.Total).Str("status", string(inv.Status)).Msg("invoice updated")
	return l.Get(ctx, id)
}

func (l *Ledger) Delete(ctx context.Context, id int64) error {
	if err := l.repo.Delete(ctx, id); err != nil {
		return err
	}
	l.log.Info().Int64("invoice", id).Msg("invoice deleted")
	return nil
}

// SetPaidAmount stores a new paid amount and re-derives remaining and status.
func (l *Ledger) SetPaidAmount(ctx context.Context, id int64, amount float64) (*domain.Invoice, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, errors.NotValidf("paid amount %v", amount)
	}
	inv, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	inv.SetPaid(amount)
	if err := l.repo.SaveTotals(ctx, inv); err != nil {
		return nil, err
	}
	l.log.Debug().Int64("invoice", id).Float64("paid", inv.PaidAmount).Str("status", string(inv.Status)).Msg("paid amount set")
	return inv, nil
}

// SetStatus stores status as given. A value that disagrees with the paid
// amount is kept but logged.
func (l *Ledger) SetStatus(ctx context.Context, id int64, status string) (*domain.Invoice, error) {
	st, err := domain.ParseInvoiceStatus(strings.ToUpper(strings.TrimSpace(status)))
	if err != nil {
		return nil, err
	}
	inv, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if derived := domain.DeriveStatus(inv.Total, inv.PaidAmount); derived != st {
		l.log.Warn().Int64("invoice", id).Str("status", string(st)).Str("derived", string(derived)).
			Msg("status override disagrees with paid amount")
	}
	if err := l.repo.UpdateStatus(ctx, id, st); err != nil {
		return nil, err
	}
	inv.Status = st
	return inv, nil
}

// Total returns the total of invoice id.
func (l *Ledger) Total(ctx context.Context, id int64) (float64, error) {
	inv, err := l.repo.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return inv.Total, nil
}

func (l *Ledger) IDsByClient(ctx context.Context, clientID int64) ([]int64, error) {
	return l.repo.IDsByClient(ctx, clientID)
}

// ByClient lists a client's invoices, optionally only those in status and
// issued in year.
func (l *Ledger) ByClient(ctx context.Context, clientID int64, status string, year int) ([]domain.Invoice, error) {
	f := repository.InvoiceFilter{ClientID: clientID, Year: year}
	if status != "" {
		st, err := domain.ParseInvoiceStatus(strings.ToUpper(status))
		if err != nil {
			return nil, err
		}
		f.Status = st
	}
	return l.find(ctx, f)
}

// Paid lists fully paid invoices, of one client when clientID is not 0.
func (l *Ledger) Paid(ctx context.Context, clientID int64) ([]domain.Invoice, error) {
	return l.find(ctx, repository.InvoiceFilter{ClientID: clientID, Status: domain.InvoicePaid})
}

// Unpaid lists invoices not fully paid, of one client when clientID is not 0.
func (l *Ledger) Unpaid(ctx context.Context, clientID int64) ([]domain.Invoice, error) {
	return l.find(ctx, repository.InvoiceFilter{ClientID: clientID, NotStatus: domain.InvoicePaid})
}

func (l *Ledger) find(ctx context.Context, f repository.InvoiceFilter) ([]domain.Invoice, error) {
	invs, _, err := l.repo.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	invs = nonNil(invs)
	l.enrich(ctx, invs)
	return invs, nil
}

func nonNil(invs []domain.Invoice) []domain.Invoice {
	if invs == nil {
		return []domain.Invoice{}
	}
	return invs
}
