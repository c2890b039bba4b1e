package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/repository"
)

// Service is the Catalog Store: products, their stock and categories.
type Service struct {
	products   *repository.ProductRepo
	categories *repository.CategoryRepo
	log        zerolog.Logger
}

func NewService(products *repository.ProductRepo, categories *repository.CategoryRepo) *Service {
	return &Service{
		products:   products,
		categories: categories,
		log:        logger.WithComponent("catalog"),
	}
}

func (s *Service) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return s.products.GetByID(ctx, id)
}

// List returns every product, or those whose name contains name.
func (s *Service) List(ctx context.Context, name string) ([]domain.Product, error) {
	out, err := s.products.List(ctx, strings.TrimSpace(name))
	if out == nil && err == nil {
		out = []domain.Product{}
	}
	return out, err
}

func (s *Service) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := s.validate(ctx, &p); err != nil {
		return nil, err
	}
	if err := s.products.Insert(ctx, &p); err != nil {
		return nil, err
	}
	s.log.Info().Int64("product", p.ID).Str("name", p.Name).Msg("product created")
	return s.products.GetByID(ctx, p.ID)
}

// Update replaces product id with p. p.Version must be the version last read;
// a stale version fails with domain.ErrConflict.
func (s *Service) Update(ctx context.Context, id int64, p domain.Product) (*domain.Product, error) {
	p.ID = id
	if err := s.validate(ctx, &p); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, &p); err != nil {
		return nil, err
	}
	return s.products.GetByID(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.products.Delete(ctx, id)
}

// DecreaseStock removes quantity units from product id. It fails with
// domain.ErrInvalidState, writing nothing, when fewer units are on hand.
func (s *Service) DecreaseStock(ctx context.Context, id, quantity int64) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, errors.NotValidf("quantity %d: must be positive", quantity)
	}
	p, err := s.products.DecreaseStock(ctx, id, quantity)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Int64("product", id).Int64("quantity", quantity).Int64("left", p.Quantity).Msg("stock decreased")
	return p, nil
}

func (s *Service) IncreaseStock(ctx context.Context, id, quantity int64) (*domain.Product, error) {
	if quantity <= 0 {
		return nil, errors.NotValidf("quantity %d: must be positive", quantity)
	}
	p, err := s.products.IncreaseStock(ctx, id, quantity)
	if err != nil {
		return nil, err
	}
	s.log.Debug().Int64("product", id).Int64("quantity", quantity).Int64("left", p.Quantity).Msg("stock increased")
	return p, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]domain.Category, error) {
	out, err := s.categories.List(ctx)
	if out == nil && err == nil {
		out = []domain.Category{}
	}
	return out, err
}

func (s *Service) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	return s.categories.GetByID(ctx, id)
}

func (s *Service) CreateCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return nil, errors.NotValidf("empty category name")
	}
	if _, err := s.categories.GetByName(ctx, c.Name); err == nil {
		return nil, errors.AlreadyExistsf("category %q", c.Name)
	} else if !errors.Is(err, errors.NotFound) {
		return nil, err
	}
	if err := s.categories.Insert(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCategory removes a category no product refers to.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := s.categories.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := s.products.CountByCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("category %d is used by %d products: %w", id, n, domain.ErrInvalidState)
	}
	return s.categories.Delete(ctx, id)
}

// validate checks p and resolves its category, given by id or by name, to
// the stored one.
func (s *Service) validate(ctx context.Context, p *domain.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errors.NotValidf("empty product name")
	}
	if p.Price <= 0 {
		return errors.NotValidf("price %v: must be positive", p.Price)
	}
	if p.Quantity < 0 {
		return errors.NotValidf("quantity %d: must not be negative", p.Quantity)
	}
	if p.Category == nil {
		return nil
	}

	var (
		cat *domain.Category
		err error
	)
	switch {
	case p.Category.ID != 0:
		cat, err = s.categories.GetByID(ctx, p.Category.ID)
	case strings.TrimSpace(p.Category.Name) != "":
		cat, err = s.categories.GetByName(ctx, strings.TrimSpace(p.Category.Name))
	default:
		p.Category = nil
		return nil
	}
	if errors.Is(err, errors.NotFound) {
		return errors.NewNotValid(err, "unknown category")
	}
	if err != nil {
		return err
	}
	p.Category = cat
	return nil
}

// Seed fills an empty catalog with sample categories and products.
func (s *Service) Seed(ctx context.Context) error {
	n, err := s.products.Count(ctx)
	if err != nil {
		return errors.Annotate(err, "count products")
	}
	if n > 0 {
		s.log.Debug().Int("count", n).Msg("products present, skipping seed")
		return nil
	}

	cats, err := s.categories.List(ctx)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		for _, c := range []domain.Category{
			{Name: "PC", Description: "Ordinateurs personnels"},
			{Name: "Imprimante", Description: "Imprimantes et scanners"},
			{Name: "Smartphone", Description: "Téléphones intelligents"},
			{Name: "Accessoires", Description: "Souris, claviers, casques"},
		} {
			if _, err := s.CreateCategory(ctx, c); err != nil {
				return errors.Annotatef(err, "seed category %s", c.Name)
			}
		}
	}

	products := []domain.Product{
		{Name: "Dell Inspiron 15", Price: 750, Quantity: 50, Category: &domain.Category{Name: "PC"}},
		{Name: "HP LaserJet Pro", Price: 300, Quantity: 30, Category: &domain.Category{Name: "Imprimante"}},
		{Name: "iPhone 14", Price: 1200, Quantity: 25, Category: &domain.Category{Name: "Smartphone"}},
		{Name: "Logitech MX Master 3", Price: 100, Quantity: 100, Category: &domain.Category{Name: "Accessoires"}},
		{Name: "Samsung Galaxy S23", Price: 999, Quantity: 40, Category: &domain.Category{Name: "Smartphone"}},
		{Name: "Canon Pixma TS8350", Price: 150, Quantity: 15, Category: &domain.Category{Name: "Imprimante"}},
	}
	for _, p := range products {
		if _, err := s.Create(ctx, p); err != nil {
			// Categories may have been renamed since; seed without one.
			if !errors.Is(err, errors.NotValid) {
				return errors.Annotatef(err, "seed product %s", p.Name)
			}
			p.Category = nil
			if _, err := s.Create(ctx, p); err != nil {
				return errors.Annotatef(err, "seed product %s", p.Name)
			}
		}
	}
	s.log.Info().Int("count", len(products)).Msg("seeded products")
	return nil
}
