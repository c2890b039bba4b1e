package invoice

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/ledgerline/billing/internal/domain"
)

// seedHistory stores invoices across two years directly, bypassing the
// workflow so dates can be chosen.
func seedHistory(c *qt.C, f *fixture) {
	ctx := context.Background()
	rows := []struct {
		client int64
		date   time.Time
		lines  []domain.LineItem
		paid   float64
	}{
		{1, time.Date(2023, 11, 3, 0, 0, 0, 0, time.UTC), []domain.LineItem{{ProductID: 10, Quantity: 2, Price: 10}}, 20},
		{2, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), []domain.LineItem{{ProductID: 20, Quantity: 4, Price: 5}}, 5},
		{1, time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC), []domain.LineItem{{ProductID: 10, Quantity: 1, Price: 10}}, 0},
		{2, time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC), []domain.LineItem{{ProductID: 20, Quantity: 10, Price: 5}, {ProductID: 10, Quantity: 1, Price: 10}}, 60},
	}
	for _, r := range rows {
		inv := &domain.Invoice{ClientID: r.client, Date: r.date, Lines: r.lines, PaidAmount: r.paid}
		inv.ComputeTotals()
		c.Assert(f.repo.Insert(ctx, inv), qt.IsNil)
	}
}

func TestClientFigures(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	seedHistory(c, f)
	ctx := context.Background()

	rev, err := f.ledger.RevenueByClient(ctx, 1, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(rev, qt.Equals, 30.0)

	rev, err = f.ledger.RevenueByClient(ctx, 1, 2024)
	c.Assert(err, qt.IsNil)
	c.Assert(rev, qt.Equals, 10.0)

	owed, err := f.ledger.Outstanding(ctx, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(owed, qt.Equals, 15.0)

	ids, err := f.ledger.IDsByClient(ctx, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 2)

	paid, err := f.ledger.ByClient(ctx, 2, "paid", 0)
	c.Assert(err, qt.IsNil)
	c.Assert(paid, qt.HasLen, 1)
	c.Assert(paid[0].Total, qt.Equals, 60.0)

	unpaid, err := f.ledger.Unpaid(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(unpaid, qt.HasLen, 2)

	all, err := f.ledger.Paid(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 2)

	sold, err := f.ledger.QuantitySold(ctx, 10, 2024)
	c.Assert(err, qt.IsNil)
	c.Assert(sold, qt.Equals, int64(2))
}

func TestRankings(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	seedHistory(c, f)
	ctx := context.Background()

	top, err := f.ledger.TopClients(ctx, 0, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(top, qt.DeepEquals, []domain.ClientRevenue{{ClientID: 2, ClientName: "Mariem", Revenue: 80}})

	products, err := f.ledger.TopProducts(ctx, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(products, qt.DeepEquals, []domain.ProductSales{
		{ProductID: 20, ProductName: "B", Quantity: 14},
		{ProductID: 10, ProductName: "A", Quantity: 4},
	})

	requested, err := f.ledger.RequestedProducts(ctx, 1, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(requested, qt.DeepEquals, []domain.ProductSales{{ProductID: 10, ProductName: "A", Quantity: 3}})
}

func TestTrendsAndSummaries(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	seedHistory(c, f)
	ctx := context.Background()

	trends, err := f.ledger.MonthlyTrends(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(trends, qt.DeepEquals, []MonthlySales{
		{Year: 2023, Month: "11", Total: 20, Count: 1},
		{Year: 2024, Month: "01", Total: 60, Count: 1},
		{Year: 2024, Month: "02", Total: 30, Count: 2},
	})

	sales, err := f.ledger.SalesSummary(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(sales.Total, qt.Equals, 110.0)
	c.Assert(sales.ByYear, qt.DeepEquals, []YearSales{
		{Year: 2023, Total: 20, Count: 1},
		{Year: 2024, Total: 90, Count: 3},
	})

	counts, err := f.ledger.Counts(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(*counts, qt.Equals, Counts{Total: 4, NotPaid: 1, PartiallyPaid: 1, Paid: 2, Pending: 2})

	rate, err := f.ledger.PaymentRate(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(*rate, qt.Equals, PaymentRate{PaidPercent: 50, PendingPercent: 50})

	overview, err := f.ledger.Overview(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(overview, qt.HasLen, 4)
	c.Assert(overview[1].ClientName, qt.Equals, "Mariem")
	c.Assert(overview[1].Amount, qt.Equals, 20.0)
}

func TestPaymentRateWithoutInvoices(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	rate, err := f.ledger.PaymentRate(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(*rate, qt.Equals, PaymentRate{})

	trends, err := f.ledger.MonthlyTrends(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(trends, qt.HasLen, 0)
}
