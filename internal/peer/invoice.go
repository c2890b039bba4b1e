package peer

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ledgerline/billing/internal/domain"
)

// InvoiceClient calls the invoice service.
type InvoiceClient struct {
	c *client
}

func NewInvoiceClient(baseURL string, opts Options) *InvoiceClient {
	return &InvoiceClient{c: newClient("invoice", baseURL, opts)}
}

func (ic *InvoiceClient) Get(ctx context.Context, id int64) (*domain.Invoice, error) {
	var out domain.Invoice
	if err := ic.c.get(ctx, fmt.Sprintf("/invoices/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (ic *InvoiceClient) SetPaidAmount(ctx context.Context, id int64, amount float64) error {
	path := fmt.Sprintf("/invoices/%d/paid-amount", id) +
		query("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	return ic.c.send(ctx, http.MethodPut, path, nil, nil)
}

func (ic *InvoiceClient) SetStatus(ctx context.Context, id int64, status domain.InvoiceStatus) error {
	path := fmt.Sprintf("/invoices/%d/status", id) + query("status", string(status))
	return ic.c.send(ctx, http.MethodPut, path, nil, nil)
}

func (ic *InvoiceClient) IDsByClient(ctx context.Context, clientID int64) ([]int64, error) {
	out := []int64{}
	if err := ic.c.get(ctx, fmt.Sprintf("/invoices/client/%d/ids", clientID), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ByClient lists a client's invoices, optionally only those in status.
func (ic *InvoiceClient) ByClient(ctx context.Context, clientID int64, status domain.InvoiceStatus) ([]domain.Invoice, error) {
	out := []domain.Invoice{}
	path := fmt.Sprintf("/invoices/client/%d", clientID) + query("status", string(status))
	if err := ic.c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type clientTotal struct {
	Total float64 `json:"total"`
}

// RevenueByClient sums a client's invoice totals, in one year when year is
// non-zero.
func (ic *InvoiceClient) RevenueByClient(ctx context.Context, clientID int64, year int) (float64, error) {
	var out clientTotal
	path := fmt.Sprintf("/invoices/client/%d/total", clientID) + query("year", yearParam(year))
	if err := ic.c.get(ctx, path, &out); err != nil {
		return 0, err
	}
	return out.Total, nil
}

func (ic *InvoiceClient) Outstanding(ctx context.Context, clientID int64) (float64, error) {
	var out struct {
		Outstanding float64 `json:"outstanding"`
	}
	if err := ic.c.get(ctx, fmt.Sprintf("/invoices/client/%d/outstanding", clientID), &out); err != nil {
		return 0, err
	}
	return out.Outstanding, nil
}

func (ic *InvoiceClient) TopClients(ctx context.Context, year, limit int) ([]domain.ClientRevenue, error) {
	out := []domain.ClientRevenue{}
	path := "/invoices/stats/top-clients" + query("year", yearParam(year), "limit", strconv.Itoa(limit))
	if err := ic.c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (ic *InvoiceClient) RequestedProducts(ctx context.Context, clientID int64, limit int) ([]domain.ProductSales, error) {
	out := []domain.ProductSales{}
	path := fmt.Sprintf("/invoices/client/%d/products", clientID) + query("limit", strconv.Itoa(limit))
	if err := ic.c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func yearParam(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}
