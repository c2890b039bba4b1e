package invoice

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/metrics"
	"github.com/ledgerline/billing/internal/repository"
)

var epoch = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

type fakeCustomers struct {
	clients map[int64]domain.Client
	err     error
}

func (f *fakeCustomers) GetClient(_ context.Context, id int64) (*domain.Client, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.clients[id]
	if !ok {
		return nil, errors.NotFoundf("client %d", id)
	}
	return &c, nil
}

// fakeCatalog keeps stock in memory and records compensations.
type fakeCatalog struct {
	mu        sync.Mutex
	products  map[int64]*domain.Product
	lookupErr error
	increases []int64
}

func newFakeCatalog(products ...domain.Product) *fakeCatalog {
	f := &fakeCatalog{products: map[int64]*domain.Product{}}
	for i := range products {
		p := products[i]
		f.products[p.ID] = &p
	}
	return f
}

func (f *fakeCatalog) GetByID(_ context.Context, id int64) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	p, ok := f.products[id]
	if !ok {
		return nil, errors.NotFoundf("product %d", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) DecreaseStock(_ context.Context, id, quantity int64) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, errors.NotFoundf("product %d", id)
	}
	if p.Quantity < quantity {
		return nil, domain.ErrInvalidState
	}
	p.Quantity -= quantity
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) IncreaseStock(_ context.Context, id, quantity int64) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, errors.NotFoundf("product %d", id)
	}
	p.Quantity += quantity
	f.increases = append(f.increases, id)
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) stock(id int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Quantity
}

type fixture struct {
	repo      *repository.InvoiceRepo
	customers *fakeCustomers
	catalog   *fakeCatalog
	ledger    *Ledger
	creator   *Creator
	clock     *testclock.Clock
}

func newFixture(c *qt.C) *fixture {
	db, err := repository.InitDB(filepath.Join(c.TempDir(), "invoice.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { db.Close() })

	f := &fixture{
		repo: repository.NewInvoiceRepo(db),
		customers: &fakeCustomers{clients: map[int64]domain.Client{
			1: {ID: 1, Name: "Ali"},
			2: {ID: 2, Name: "Mariem"},
		}},
		catalog: newFakeCatalog(
			domain.Product{ID: 10, Name: "A", Price: 10, Quantity: 5},
			domain.Product{ID: 20, Name: "B", Price: 5, Quantity: 2},
		),
		clock: testclock.NewClock(epoch),
	}
	f.ledger = NewLedger(f.repo, f.customers, f.catalog)
	f.creator = NewCreator(f.repo, f.customers, f.catalog, f.clock, metrics.New())
	return f
}

func (f *fixture) create(c *qt.C, clientID int64, lines ...LineRequest) *domain.Invoice {
	inv, err := f.creator.Create(context.Background(), CreateRequest{ClientID: clientID, Lines: lines})
	c.Assert(err, qt.IsNil)
	return inv
}

func TestCreateComputesTotalsAndTakesStock(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	inv := f.create(c, 1, LineRequest{ProductID: 10, Quantity: 3}, LineRequest{ProductID: 20, Quantity: 1})

	c.Assert(inv.Total, qt.Equals, 35.0)
	c.Assert(inv.Status, qt.Equals, domain.InvoiceNotPaid)
	c.Assert(inv.Remaining, qt.Equals, 35.0)
	c.Assert(inv.Date.Equal(epoch), qt.IsTrue)
	c.Assert(inv.Client.Name, qt.Equals, "Ali")
	c.Assert(f.catalog.stock(10), qt.Equals, int64(2))
	c.Assert(f.catalog.stock(20), qt.Equals, int64(1))

	stored, err := f.ledger.Get(context.Background(), inv.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Lines, qt.HasLen, 2)
	c.Assert(stored.Lines[0].InvoiceID, qt.Equals, inv.ID)
	c.Assert(stored.Lines[0].Price, qt.Equals, 10.0)
	c.Assert(stored.Lines[1].Product.Name, qt.Equals, "B")
	c.Assert(stored.Consistent(), qt.IsTrue)
}

func TestCreateFreezesPrice(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	inv := f.create(c, 1, LineRequest{ProductID: 10, Quantity: 1})
	f.catalog.products[10].Price = 99

	stored, err := f.ledger.Get(context.Background(), inv.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Lines[0].Price, qt.Equals, 10.0)
	c.Assert(stored.Total, qt.Equals, 10.0)
}

func TestCreateRejects(t *testing.T) {
	tests := []struct {
		name  string
		req   CreateRequest
		check func(error) bool
	}{
		{"unknown client", CreateRequest{ClientID: 9, Lines: []LineRequest{{ProductID: 10, Quantity: 1}}},
			func(err error) bool { return errors.Is(err, errors.NotFound) }},
		{"no lines", CreateRequest{ClientID: 1},
			func(err error) bool { return errors.Is(err, errors.NotValid) }},
		{"unknown product", CreateRequest{ClientID: 1, Lines: []LineRequest{{ProductID: 99, Quantity: 1}}},
			func(err error) bool { return errors.Is(err, errors.NotFound) }},
		{"zero quantity", CreateRequest{ClientID: 1, Lines: []LineRequest{{ProductID: 10, Quantity: 0}}},
			func(err error) bool { return errors.Is(err, errors.NotValid) }},
		{"huge quantity", CreateRequest{ClientID: 1, Lines: []LineRequest{{ProductID: 10, Quantity: math.MaxInt32 + 1}}},
			func(err error) bool { return errors.Is(err, errors.NotValid) }},
		{"short stock", CreateRequest{ClientID: 1, Lines: []LineRequest{{ProductID: 10, Quantity: 6}}},
			func(err error) bool { return errors.Is(err, domain.ErrInvalidState) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			f := newFixture(c)
			_, err := f.creator.Create(context.Background(), tt.req)
			c.Assert(tt.check(err), qt.IsTrue, qt.Commentf("got %v", err))
			c.Assert(f.catalog.stock(10), qt.Equals, int64(5))

			invs, _, err := f.repo.Find(context.Background(), repository.InvoiceFilter{})
			c.Assert(err, qt.IsNil)
			c.Assert(invs, qt.HasLen, 0)
		})
	}
}

func TestCreateShortStockMessage(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	_, err := f.creator.Create(context.Background(), CreateRequest{ClientID: 1, Lines: []LineRequest{{ProductID: 20, Quantity: 3}}})
	c.Assert(err, qt.ErrorMatches, "insufficient stock for B: available 2, requested 3: invalid state")
}

func TestCreateCompensatesEarlierLines(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)

	_, err := f.creator.Create(context.Background(), CreateRequest{ClientID: 1, Lines: []LineRequest{
		{ProductID: 10, Quantity: 2},
		{ProductID: 20, Quantity: 1},
		{ProductID: 20, Quantity: 5},
	}})
	c.Assert(err, qt.ErrorIs, domain.ErrInvalidState)
	c.Assert(f.catalog.stock(10), qt.Equals, int64(5))
	c.Assert(f.catalog.stock(20), qt.Equals, int64(2))
	c.Assert(f.catalog.increases, qt.DeepEquals, []int64{20, 10})
}

func TestCreateCompensatesFailedPersist(t *testing.T) {
	c := qt.New(t)
	db, err := repository.InitDB(filepath.Join(c.TempDir(), "closed.db"))
	c.Assert(err, qt.IsNil)
	db.Close()

	f := newFixture(c)
	creator := NewCreator(repository.NewInvoiceRepo(db), f.customers, f.catalog, f.clock, nil)

	_, err = creator.Create(context.Background(), CreateRequest{ClientID: 1, Lines: []LineRequest{{ProductID: 10, Quantity: 4}}})
	c.Assert(err, qt.ErrorMatches, "persist invoice: .*")
	c.Assert(f.catalog.stock(10), qt.Equals, int64(5))
}

func TestCreateClientServiceDown(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	f.customers.err = domain.ErrServiceUnavailable

	_, err := f.creator.Create(context.Background(), CreateRequest{ClientID: 1, Lines: []LineRequest{{ProductID: 10, Quantity: 1}}})
	c.Assert(err, qt.ErrorIs, domain.ErrServiceUnavailable)
	c.Assert(f.catalog.stock(10), qt.Equals, int64(5))
}

func TestPaidAmountAndStatus(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	ctx := context.Background()
	inv := f.create(c, 1, LineRequest{ProductID: 10, Quantity: 3}, LineRequest{ProductID: 20, Quantity: 1})

	steps := []struct {
		paid      float64
		status    domain.InvoiceStatus
		remaining float64
	}{
		{10, domain.InvoicePartiallyPaid, 25},
		{35, domain.InvoicePaid, 0},
		{40, domain.InvoicePaid, 0},
		{5, domain.InvoicePartiallyPaid, 30},
		{-3, domain.InvoiceNotPaid, 35},
	}
	for _, s := range steps {
		got, err := f.ledger.SetPaidAmount(ctx, inv.ID, s.paid)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Status, qt.Equals, s.status, qt.Commentf("paid %v", s.paid))
		c.Assert(got.Remaining, qt.Equals, s.remaining)
		c.Assert(got.PaidAmount >= 0, qt.IsTrue)

		stored, err := f.ledger.Get(ctx, inv.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(stored.Consistent(), qt.IsTrue)
	}

	_, err := f.ledger.SetPaidAmount(ctx, 404, 1)
	c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := f.ledger.SetPaidAmount(ctx, inv.ID, bad)
		c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue, qt.Commentf("paid %v", bad))
	}
	stored, err := f.ledger.Get(ctx, inv.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.PaidAmount, qt.Equals, 0.0)
	c.Assert(stored.Status, qt.Equals, domain.InvoiceNotPaid)
}

func TestSetStatusOverride(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	ctx := context.Background()
	inv := f.create(c, 1, LineRequest{ProductID: 10, Quantity: 1})

	got, err := f.ledger.SetStatus(ctx, inv.ID, "paid")
	c.Assert(err, qt.IsNil)
	c.Assert(got.Status, qt.Equals, domain.InvoicePaid)

	stored, err := f.ledger.Get(ctx, inv.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Status, qt.Equals, domain.InvoicePaid)

	_, err = f.ledger.SetStatus(ctx, inv.ID, "SETTLED")
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)
	_, err = f.ledger.SetStatus(ctx, 404, "PAID")
	c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)
}

func TestUpdateRecomputes(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	ctx := context.Background()
	inv := f.create(c, 1, LineRequest{ProductID: 10, Quantity: 3})
	_, err := f.ledger.SetPaidAmount(ctx, inv.ID, 20)
	c.Assert(err, qt.IsNil)

	got, err := f.ledger.Update(ctx, inv.ID, UpdateRequest{ClientID: 2, Lines: []domain.LineItem{
		{ProductID: 20, Quantity: 2, Price: 5},
	}})
	c.Assert(err, qt.IsNil)
	c.Assert(got.ClientID, qt.Equals, int64(2))
	c.Assert(got.Client.Name, qt.Equals, "Mariem")
	c.Assert(got.Total, qt.Equals, 10.0)
	c.Assert(got.PaidAmount, qt.Equals, 20.0)
	c.Assert(got.Remaining, qt.Equals, 0.0)
	c.Assert(got.Status, qt.Equals, domain.InvoicePaid)
	c.Assert(got.Lines, qt.HasLen, 1)

	_, err = f.ledger.Update(ctx, inv.ID, UpdateRequest{ClientID: 2})
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)
	_, err = f.ledger.Update(ctx, 404, UpdateRequest{ClientID: 2, Lines: []domain.LineItem{{ProductID: 1, Quantity: 1}}})
	c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)

	c.Assert(f.ledger.Delete(ctx, inv.ID), qt.IsNil)
	_, err = f.ledger.Get(ctx, inv.ID)
	c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)
}

func TestEnrichmentDegradesToPlaceholders(t *testing.T) {
	c := qt.New(t)
	f := newFixture(c)
	ctx := context.Background()
	inv := f.create(c, 1, LineRequest{ProductID: 10, Quantity: 1})

	f.customers.err = domain.ErrServiceUnavailable
	f.catalog.lookupErr = domain.ErrServiceUnavailable

	got, err := f.ledger.Get(ctx, inv.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Client.Name, qt.Equals, domain.ClientUnavailable)
	c.Assert(got.Client.Email, qt.Equals, "N/A")
	c.Assert(got.Lines[0].Product.Name, qt.Equals, domain.ProductUnavailable)

	top, err := f.ledger.TopProducts(ctx, 5)
	c.Assert(err, qt.IsNil)
	c.Assert(top, qt.DeepEquals, []domain.ProductSales{{ProductID: 10, ProductName: domain.ProductUnavailable, Quantity: 1}})
}
