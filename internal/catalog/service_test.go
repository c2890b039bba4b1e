package catalog

import (
	"context"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/repository"
)

func newTestService(c *qt.C) *Service {
	db, err := repository.InitDB(filepath.Join(c.TempDir(), "catalog.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { db.Close() })
	return NewService(repository.NewProductRepo(db), repository.NewCategoryRepo(db))
}

func TestSeed(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(c)
	ctx := context.Background()

	c.Assert(svc.Seed(ctx), qt.IsNil)
	c.Assert(svc.Seed(ctx), qt.IsNil)

	products, err := svc.List(ctx, "")
	c.Assert(err, qt.IsNil)
	c.Assert(products, qt.HasLen, 6)
	c.Assert(products[0].Name, qt.Equals, "Dell Inspiron 15")
	c.Assert(products[0].Category, qt.Not(qt.IsNil))
	c.Assert(products[0].Category.Name, qt.Equals, "PC")

	phones, err := svc.List(ctx, "GALAXY")
	c.Assert(err, qt.IsNil)
	c.Assert(phones, qt.HasLen, 1)

	cats, err := svc.ListCategories(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(cats, qt.HasLen, 4)
}

func TestCreateValidates(t *testing.T) {
	tests := []struct {
		name string
		p    domain.Product
	}{
		{"blank name", domain.Product{Name: "  ", Price: 1}},
		{"zero price", domain.Product{Name: "Pen", Price: 0}},
		{"negative stock", domain.Product{Name: "Pen", Price: 1, Quantity: -1}},
		{"unknown category", domain.Product{Name: "Pen", Price: 1, Category: &domain.Category{ID: 99}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			svc := newTestService(c)
			_, err := svc.Create(context.Background(), tt.p)
			c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue, qt.Commentf("got %v", err))
		})
	}
}

func TestCreateResolvesCategoryByName(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(c)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, domain.Category{Name: "Office"})
	c.Assert(err, qt.IsNil)

	p, err := svc.Create(ctx, domain.Product{Name: "Stapler", Price: 4, Quantity: 3, Category: &domain.Category{Name: "Office"}})
	c.Assert(err, qt.IsNil)
	c.Assert(p.Category.ID, qt.Equals, cat.ID)
}

func TestStockMovements(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(c)
	ctx := context.Background()

	p, err := svc.Create(ctx, domain.Product{Name: "Widget", Price: 10, Quantity: 5})
	c.Assert(err, qt.IsNil)

	got, err := svc.DecreaseStock(ctx, p.ID, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Quantity, qt.Equals, int64(2))

	_, err = svc.DecreaseStock(ctx, p.ID, 3)
	c.Assert(err, qt.ErrorIs, domain.ErrInvalidState)
	c.Assert(err, qt.ErrorMatches, "insufficient stock for Widget: available 2, requested 3: invalid state")

	_, err = svc.DecreaseStock(ctx, p.ID, 0)
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)

	_, err = svc.DecreaseStock(ctx, 404, 1)
	c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)

	got, err = svc.IncreaseStock(ctx, p.ID, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Quantity, qt.Equals, int64(5))
}

func TestUpdateIsVersionGuarded(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(c)
	ctx := context.Background()

	p, err := svc.Create(ctx, domain.Product{Name: "Lamp", Price: 20, Quantity: 1})
	c.Assert(err, qt.IsNil)

	stale := *p
	p.Price = 25
	updated, err := svc.Update(ctx, p.ID, *p)
	c.Assert(err, qt.IsNil)
	c.Assert(updated.Price, qt.Equals, 25.0)
	c.Assert(updated.Version, qt.Equals, p.Version+1)

	stale.Price = 30
	_, err = svc.Update(ctx, p.ID, stale)
	c.Assert(err, qt.ErrorIs, domain.ErrConflict)
}

func TestDeleteCategoryInUse(t *testing.T) {
	c := qt.New(t)
	svc := newTestService(c)
	ctx := context.Background()

	cat, err := svc.CreateCategory(ctx, domain.Category{Name: "Garden"})
	c.Assert(err, qt.IsNil)
	p, err := svc.Create(ctx, domain.Product{Name: "Hose", Price: 15, Category: &domain.Category{ID: cat.ID}})
	c.Assert(err, qt.IsNil)

	err = svc.DeleteCategory(ctx, cat.ID)
	c.Assert(err, qt.ErrorIs, domain.ErrInvalidState)

	c.Assert(svc.Delete(ctx, p.ID), qt.IsNil)
	c.Assert(svc.DeleteCategory(ctx, cat.ID), qt.IsNil)

	_, err = svc.GetCategory(ctx, cat.ID)
	c.Assert(errors.Is(err, errors.NotFound), qt.IsTrue)

	_, err = svc.CreateCategory(ctx, domain.Category{Name: " "})
	c.Assert(errors.Is(err, errors.NotValid), qt.IsTrue)
}
