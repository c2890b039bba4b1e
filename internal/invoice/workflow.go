package invoice

import (
	"context"
	"fmt"
	"math"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/metrics"
	"github.com/ledgerline/billing/internal/repository"
)

// maxQuantity is the largest quantity one line may carry.
const maxQuantity = math.MaxInt32

// Catalog is what invoice creation needs from the catalog service.
type Catalog interface {
	ProductLookup
	DecreaseStock(ctx context.Context, id, quantity int64) (*domain.Product, error)
	IncreaseStock(ctx context.Context, id, quantity int64) (*domain.Product, error)
}

type LineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type CreateRequest struct {
	ClientID int64         `json:"client_id"`
	Lines    []LineRequest `json:"lines"`
}

// Creator runs the invoice creation workflow: validate the client and every
// line against the catalog, take the stock, then persist. Stock already
// taken is given back if a later step fails.
type Creator struct {
	repo      *repository.InvoiceRepo
	customers CustomerLookup
	catalog   Catalog
	clock     clock.Clock
	metrics   *metrics.Collector
	log       zerolog.Logger
}

func NewCreator(repo *repository.InvoiceRepo, customers CustomerLookup, catalog Catalog, clk clock.Clock, m *metrics.Collector) *Creator {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Creator{
		repo:      repo,
		customers: customers,
		catalog:   catalog,
		clock:     clk,
		metrics:   m,
		log:       logger.WithComponent("invoice-workflow"),
	}
}

type decrement struct {
	productID int64
	quantity  int64
}

func (c *Creator) Create(ctx context.Context, req CreateRequest) (_ *domain.Invoice, err error) {
	if req.ClientID <= 0 {
		return nil, errors.NotValidf("client id %d", req.ClientID)
	}
	client, err := c.customers.GetClient(ctx, req.ClientID)
	if err != nil {
		return nil, errors.Annotatef(err, "resolve client %d", req.ClientID)
	}
	if len(req.Lines) == 0 {
		return nil, errors.NotValidf("invoice without lines")
	}

	var taken []decrement
	defer func() {
		if err != nil && len(taken) > 0 {
			c.compensate(ctx, taken)
		}
	}()

	inv := &domain.Invoice{
		ClientID: req.ClientID,
		Lines:    make([]domain.LineItem, 0, len(req.Lines)),
	}
	for i, line := range req.Lines {
		product, err := c.catalog.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, errors.Annotatef(err, "line %d: resolve product %d", i, line.ProductID)
		}
		if line.Quantity <= 0 {
			return nil, errors.NotValidf("line %d: quantity %d for product %d: must be positive", i, line.Quantity, line.ProductID)
		}
		if line.Quantity > maxQuantity {
			return nil, errors.NotValidf("line %d: quantity %d for product %d: exceeds %d", i, line.Quantity, line.ProductID, maxQuantity)
		}
		if product.Quantity < line.Quantity {
			return nil, fmt.Errorf("insufficient stock for %s: available %d, requested %d: %w",
				product.Name, product.Quantity, line.Quantity, domain.ErrInvalidState)
		}

		after, err := c.catalog.DecreaseStock(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, errors.Annotatef(err, "line %d: decrease stock of product %d", i, line.ProductID)
		}
		taken = append(taken, decrement{productID: line.ProductID, quantity: line.Quantity})

		// The price is frozen from the snapshot that passed the stock check.
		inv.Lines = append(inv.Lines, domain.LineItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     product.Price,
			Product:   after,
		})
	}

	inv.Date = c.clock.Now().UTC()
	inv.ComputeTotals()
	if err := c.repo.Insert(ctx, inv); err != nil {
		return nil, errors.Annotate(err, "persist invoice")
	}

	c.metrics.InvoiceCreated()
	c.log.Info().Int64("invoice", inv.ID).Int64("client", inv.ClientID).Float64("total", inv.Total).
		Int("lines", len(inv.Lines)).Msg("invoice created")

	inv.Client = client
	return inv, nil
}

// compensate gives back every decrement, newest first. Failures are logged
// and never replace the error that triggered them.
func (c *Creator) compensate(ctx context.Context, taken []decrement) {
	ctx = context.WithoutCancel(ctx)
	for i := len(taken) - 1; i >= 0; i-- {
		d := taken[i]
		if _, err := c.catalog.IncreaseStock(ctx, d.productID, d.quantity); err != nil {
			c.metrics.StockCompensated(false)
			c.log.Error().Err(err).Int64("product", d.productID).Int64("quantity", d.quantity).
				Msg("stock compensation failed")
			continue
		}
		c.metrics.StockCompensated(true)
		c.log.Warn().Int64("product", d.productID).Int64("quantity", d.quantity).Msg("stock compensated")
	}
}
