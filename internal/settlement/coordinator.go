// Package settlement records payments against invoices and keeps each
// invoice's paid amount and status in step with its payments.
package settlement

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/metrics"
	"github.com/ledgerline/billing/internal/repository"
)

// Invoices is what settlement needs from the invoice service.
type Invoices interface {
	Get(ctx context.Context, id int64) (*domain.Invoice, error)
	SetPaidAmount(ctx context.Context, id int64, amount float64) error
	SetStatus(ctx context.Context, id int64, status domain.InvoiceStatus) error
	IDsByClient(ctx context.Context, clientID int64) ([]int64, error)
}

// Currencies resolves currency codes to rates.
type Currencies interface {
	GetByCode(ctx context.Context, code string) (*domain.Currency, error)
}

// Coordinator is the Settlement Coordinator.
type Coordinator struct {
	repo          *repository.PaymentRepo
	invoices      Invoices
	currencies    Currencies
	referenceCode string
	clock         clock.Clock
	metrics       *metrics.Collector
	log           zerolog.Logger
}

func NewCoordinator(
	repo *repository.PaymentRepo,
	invoices Invoices,
	currencies Currencies,
	referenceCode string,
	clk clock.Clock,
	m *metrics.Collector,
) *Coordinator {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Coordinator{
		repo:          repo,
		invoices:      invoices,
		currencies:    currencies,
		referenceCode: domain.NormalizeCode(referenceCode),
		clock:         clk,
		metrics:       m,
		log:           logger.WithComponent("settlement"),
	}
}

// Create validates and stores a payment, then recomputes its invoice. Once
// the payment is stored the call succeeds whatever happens to the recompute.
func (c *Coordinator) Create(ctx context.Context, p domain.Payment) (*domain.Payment, error) {
	if err := c.validate(ctx, &p); err != nil {
		return nil, err
	}
	if err := c.repo.Insert(ctx, &p); err != nil {
		return nil, err
	}
	c.metrics.PaymentWritten("create")
	c.log.Info().Int64("payment", p.ID).Int64("invoice", p.InvoiceID).Float64("amount", p.Amount).
		Str("method", p.Method).Str("status", string(p.Status)).Msg("payment recorded")

	c.Recompute(ctx, p.InvoiceID)
	return &p, nil
}

// Update replaces payment id. When the payment moves to another invoice both
// invoices are recomputed.
func (c *Coordinator) Update(ctx context.Context, id int64, p domain.Payment) (*domain.Payment, error) {
	existing, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.validate(ctx, &p); err != nil {
		return nil, err
	}
	p.ID = id
	if err := c.repo.Update(ctx, &p); err != nil {
		return nil, err
	}
	c.metrics.PaymentWritten("update")
	c.log.Info().Int64("payment", id).Int64("invoice", p.InvoiceID).Msg("payment updated")

	c.Recompute(ctx, p.InvoiceID)
	if existing.InvoiceID != p.InvoiceID {
		c.Recompute(ctx, existing.InvoiceID)
	}
	return &p, nil
}

func (c *Coordinator) Delete(ctx context.Context, id int64) error {
	existing, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.repo.Delete(ctx, id); err != nil {
		return err
	}
	c.metrics.PaymentWritten("delete")
	c.log.Info().Int64("payment", id).Int64("invoice", existing.InvoiceID).Msg("payment deleted")

	c.Recompute(ctx, existing.InvoiceID)
	return nil
}

// maxAmount bounds a single payment, in the payment's own currency.
const maxAmount = 1e12

// validate checks p against the invoice and currency services and fills in
// the defaults for date, method and reference.
func (c *Coordinator) validate(ctx context.Context, p *domain.Payment) error {
	if p.InvoiceID <= 0 {
		return errors.NotValidf("missing invoice id")
	}
	if !(p.Amount > 0) || math.IsInf(p.Amount, 1) {
		return errors.NotValidf("amount %v: must be positive", p.Amount)
	}
	if p.Amount > maxAmount {
		return errors.NotValidf("amount %v: exceeds %v", p.Amount, float64(maxAmount))
	}
	if _, err := c.invoices.Get(ctx, p.InvoiceID); err != nil {
		return errors.Annotatef(err, "invoice %d", p.InvoiceID)
	}

	st, err := domain.ParsePaymentStatus(strings.ToUpper(strings.TrimSpace(string(p.Status))))
	if err != nil {
		return err
	}
	p.Status = st

	if p.Date.IsZero() {
		p.Date = c.clock.Now()
	}
	p.Date = p.Date.UTC()

	p.Method = domain.NormalizeCode(p.Method)
	switch {
	case p.Method == "":
		p.Method = c.referenceCode
	case p.Method != c.referenceCode:
		_, err := c.currencies.GetByCode(ctx, p.Method)
		if errors.Is(err, errors.NotFound) {
			return errors.NotValidf("payment method %q: unknown currency", p.Method)
		}
		if err != nil {
			return errors.Annotatef(err, "currency %s", p.Method)
		}
	}

	p.Reference = strings.TrimSpace(p.Reference)
	if p.Reference == "" {
		p.Reference = "PAY-" + uuid.NewString()
	}
	return nil
}
