package invoice

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/repository"
)

// RevenueByClient sums the totals of a client's invoices, in one year when
// year is not 0.
func (l *Ledger) RevenueByClient(ctx context.Context, clientID int64, year int) (float64, error) {
	invs, _, err := l.repo.Find(ctx, repository.InvoiceFilter{ClientID: clientID, Year: year})
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, inv := range invs {
		sum += inv.Total
	}
	return sum, nil
}

// Outstanding sums what a client still owes on invoices not fully paid.
func (l *Ledger) Outstanding(ctx context.Context, clientID int64) (float64, error) {
	invs, _, err := l.repo.Find(ctx, repository.InvoiceFilter{ClientID: clientID, NotStatus: domain.InvoicePaid})
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, inv := range invs {
		sum += inv.Remaining
	}
	return sum, nil
}

// TopClients ranks clients by revenue. Names are best-effort.
func (l *Ledger) TopClients(ctx context.Context, year, limit int) ([]domain.ClientRevenue, error) {
	rows, err := l.repo.RevenueByClient(ctx, year, limit)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(rows))
	for _, r := range rows {
		ids[r.ClientID] = true
	}
	clients := l.clientViews(ctx, ids)

	out := make([]domain.ClientRevenue, len(rows))
	for i, r := range rows {
		out[i] = domain.ClientRevenue{ClientID: r.ClientID, ClientName: clients[r.ClientID].Name, Revenue: r.Revenue}
	}
	return out, nil
}

// TopProducts ranks products by quantity sold. Names are best-effort.
func (l *Ledger) TopProducts(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	return l.productSales(ctx, 0, limit)
}

// RequestedProducts ranks the products one client bought by quantity.
func (l *Ledger) RequestedProducts(ctx context.Context, clientID int64, limit int) ([]domain.ProductSales, error) {
	return l.productSales(ctx, clientID, limit)
}

func (l *Ledger) productSales(ctx context.Context, clientID int64, limit int) ([]domain.ProductSales, error) {
	rows, err := l.repo.ProductQuantities(ctx, clientID, 0, limit)
	if err != nil {
		return nil, err
	}
	ids := make(map[int64]bool, len(rows))
	for _, r := range rows {
		ids[r.ProductID] = true
	}
	products := l.productViews(ctx, ids)

	out := make([]domain.ProductSales, len(rows))
	for i, r := range rows {
		out[i] = domain.ProductSales{ProductID: r.ProductID, ProductName: products[r.ProductID].Name, Quantity: r.Quantity}
	}
	return out, nil
}

// QuantitySold counts units of a product invoiced, in one year when year is
// not 0.
func (l *Ledger) QuantitySold(ctx context.Context, productID int64, year int) (int64, error) {
	return l.repo.QuantitySold(ctx, productID, year)
}

type MonthlySales struct {
	Year  int     `json:"year"`
	Month string  `json:"month"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// MonthlyTrends groups invoice totals by calendar month, oldest first.
func (l *Ledger) MonthlyTrends(ctx context.Context) ([]MonthlySales, error) {
	invs, err := l.all(ctx)
	if err != nil {
		return nil, err
	}
	type key struct {
		year  int
		month time.Month
	}
	buckets := map[key]*MonthlySales{}
	for _, inv := range invs {
		if inv.Date.IsZero() {
			continue
		}
		d := inv.Date.UTC()
		k := key{d.Year(), d.Month()}
		b, ok := buckets[k]
		if !ok {
			b = &MonthlySales{Year: k.year, Month: fmt.Sprintf("%02d", int(k.month))}
			buckets[k] = b
		}
		b.Total += inv.Total
		b.Count++
	}

	out := make([]MonthlySales, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

type YearSales struct {
	Year  int     `json:"year"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

type SalesSummary struct {
	Total  float64     `json:"total"`
	ByYear []YearSales `json:"by_year"`
}

func (l *Ledger) SalesSummary(ctx context.Context) (*SalesSummary, error) {
	invs, err := l.all(ctx)
	if err != nil {
		return nil, err
	}
	out := &SalesSummary{ByYear: []YearSales{}}
	years := map[int]*YearSales{}
	for _, inv := range invs {
		out.Total += inv.Total
		if inv.Date.IsZero() {
			continue
		}
		y := inv.Date.UTC().Year()
		ys, ok := years[y]
		if !ok {
			ys = &YearSales{Year: y}
			years[y] = ys
		}
		ys.Total += inv.Total
		ys.Count++
	}
	for _, ys := range years {
		out.ByYear = append(out.ByYear, *ys)
	}
	sort.Slice(out.ByYear, func(i, j int) bool { return out.ByYear[i].Year < out.ByYear[j].Year })
	return out, nil
}

// Counts tallies invoices by status. Pending is everything not PAID.
type Counts struct {
	Total         int `json:"total"`
	NotPaid       int `json:"not_paid"`
	PartiallyPaid int `json:"partially_paid"`
	Paid          int `json:"paid"`
	Pending       int `json:"pending"`
}

func (l *Ledger) Counts(ctx context.Context) (*Counts, error) {
	invs, err := l.all(ctx)
	if err != nil {
		return nil, err
	}
	var c Counts
	for _, inv := range invs {
		c.Total++
		switch inv.Status {
		case domain.InvoicePaid:
			c.Paid++
		case domain.InvoicePartiallyPaid:
			c.PartiallyPaid++
		default:
			c.NotPaid++
		}
	}
	c.Pending = c.Total - c.Paid
	return &c, nil
}

type PaymentRate struct {
	PaidPercent    float64 `json:"paid_percent"`
	PendingPercent float64 `json:"pending_percent"`
}

// PaymentRate is the share of invoices fully paid. With no invoices both
// shares are 0.
func (l *Ledger) PaymentRate(ctx context.Context) (*PaymentRate, error) {
	c, err := l.Counts(ctx)
	if err != nil {
		return nil, err
	}
	if c.Total == 0 {
		return &PaymentRate{}, nil
	}
	return &PaymentRate{
		PaidPercent:    float64(c.Paid) * 100 / float64(c.Total),
		PendingPercent: float64(c.Pending) * 100 / float64(c.Total),
	}, nil
}

type OverviewRow struct {
	ID         int64                `json:"id"`
	ClientID   int64                `json:"client_id"`
	ClientName string               `json:"client_name"`
	Amount     float64              `json:"amount"`
	Status     domain.InvoiceStatus `json:"status"`
	Date       time.Time            `json:"date"`
}

// Overview lists every invoice with its client's name.
func (l *Ledger) Overview(ctx context.Context) ([]OverviewRow, error) {
	invs, err := l.all(ctx)
	if err != nil {
		return nil, err
	}
	ids := map[int64]bool{}
	for _, inv := range invs {
		ids[inv.ClientID] = true
	}
	clients := l.clientViews(ctx, ids)

	out := make([]OverviewRow, len(invs))
	for i, inv := range invs {
		out[i] = OverviewRow{
			ID:         inv.ID,
			ClientID:   inv.ClientID,
			ClientName: clients[inv.ClientID].Name,
			Amount:     inv.Total,
			Status:     inv.Status,
			Date:       inv.Date,
		}
	}
	return out, nil
}

func (l *Ledger) all(ctx context.Context) ([]domain.Invoice, error) {
	invs, _, err := l.repo.Find(ctx, repository.InvoiceFilter{})
	return invs, err
}
