package settlement

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/repository"
)

const (
	noteInvoiceNotFound    = "Invoice not found"
	noteInvoiceUnavailable = "Invoice service unavailable"

	defaultPageSize = 5
)

// InvoiceDetails is the slice of an invoice shown next to its payments.
type InvoiceDetails struct {
	Total      float64              `json:"total"`
	Status     domain.InvoiceStatus `json:"status"`
	ClientID   int64                `json:"client_id"`
	ClientName string               `json:"client_name,omitempty"`
}

// PaymentView is a payment enriched with its invoice. When the invoice
// cannot be fetched InvoiceNote says why and Invoice is nil.
type PaymentView struct {
	domain.Payment
	Invoice     *InvoiceDetails `json:"invoice,omitempty"`
	InvoiceNote string          `json:"invoice_note,omitempty"`
}

type Filter struct {
	Status string
	Method string
	Page   int
	Size   int
}

type Page struct {
	Payments   []PaymentView `json:"payments"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
	Page       int           `json:"page"`
	Size       int           `json:"size"`
}

func (c *Coordinator) Get(ctx context.Context, id int64) (*PaymentView, error) {
	p, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	views := c.enrich(ctx, []domain.Payment{*p})
	return &views[0], nil
}

// List pages through all payments, newest first. Status and method filter
// by case-insensitive substring.
func (c *Coordinator) List(ctx context.Context, f Filter) (*Page, error) {
	return c.page(ctx, repository.PaymentFilter{Status: f.Status, Method: f.Method}, f.Page, f.Size)
}

// ByClient pages through the payments of every invoice the client holds.
// The invoice ids come from the invoice service, so an unreachable invoice
// service fails the call.
func (c *Coordinator) ByClient(ctx context.Context, clientID int64, f Filter) (*Page, error) {
	ids, err := c.invoices.IDsByClient(ctx, clientID)
	if err != nil {
		return nil, errors.Annotatef(err, "invoices of client %d", clientID)
	}
	if ids == nil {
		ids = []int64{}
	}
	return c.page(ctx, repository.PaymentFilter{Status: f.Status, Method: f.Method, InvoiceIDs: ids}, f.Page, f.Size)
}

func (c *Coordinator) ByInvoice(ctx context.Context, invoiceID int64) ([]PaymentView, error) {
	payments, err := c.repo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	return c.enrich(ctx, payments), nil
}

// SumByInvoice adds up the raw amounts of the invoice's non-canceled
// payments, without currency conversion.
func (c *Coordinator) SumByInvoice(ctx context.Context, invoiceID int64) (float64, error) {
	return c.repo.SumByInvoiceID(ctx, invoiceID)
}

func (c *Coordinator) page(ctx context.Context, rf repository.PaymentFilter, page, size int) (*Page, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	rf.Page, rf.Limit = page, size

	payments, total, err := c.repo.List(ctx, rf)
	if err != nil {
		return nil, err
	}
	return &Page{
		Payments:   c.enrich(ctx, payments),
		Total:      total,
		TotalPages: (total + size - 1) / size,
		Page:       page,
		Size:       size,
	}, nil
}

type invoiceLookup struct {
	details *InvoiceDetails
	note    string
}

// enrich fetches each distinct invoice once. Lookup failures turn into a
// note on the affected payments.
func (c *Coordinator) enrich(ctx context.Context, payments []domain.Payment) []PaymentView {
	var (
		mu      sync.Mutex
		results = map[int64]invoiceLookup{}
		seen    = map[int64]bool{}
		g, gctx = errgroup.WithContext(ctx)
	)
	g.SetLimit(8)
	for _, p := range payments {
		id := p.InvoiceID
		if seen[id] {
			continue
		}
		seen[id] = true
		g.Go(func() error {
			r := c.lookupInvoice(gctx, id)
			mu.Lock()
			results[id] = r
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	views := make([]PaymentView, len(payments))
	for i, p := range payments {
		r := results[p.InvoiceID]
		views[i] = PaymentView{Payment: p, Invoice: r.details, InvoiceNote: r.note}
	}
	return views
}

func (c *Coordinator) lookupInvoice(ctx context.Context, id int64) invoiceLookup {
	var r invoiceLookup
	inv, err := c.invoices.Get(ctx, id)
	switch {
	case errors.Is(err, errors.NotFound):
		r.note = noteInvoiceNotFound
	case err != nil:
		c.log.Warn().Err(err).Int64("invoice", id).Msg("invoice lookup failed")
		r.note = noteInvoiceUnavailable
	default:
		r.details = &InvoiceDetails{Total: inv.Total, Status: inv.Status, ClientID: inv.ClientID}
		if inv.Client != nil {
			r.details.ClientName = inv.Client.Name
		}
	}
	return r
}
