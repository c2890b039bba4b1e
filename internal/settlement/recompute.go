package settlement

import (
	"context"
	"fmt"
	"math"

	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/metrics"
)

// errPush marks a recompute that got as far as the invoice service and
// failed to write there.
const errPush = errors.ConstError("invoice push failed")

// Recompute derives an invoice's paid amount and status from its payments
// and pushes both to the invoice service, amount first. Failures are logged
// and counted, never returned: the payment write that triggered the
// recompute has already committed.
func (c *Coordinator) Recompute(ctx context.Context, invoiceID int64) {
	// The recompute outlives a caller that hangs up after the write.
	ctx = context.WithoutCancel(ctx)

	outcome, err := c.recompute(ctx, invoiceID)
	c.metrics.Recomputed(outcome)
	switch {
	case errors.Is(err, errPush):
		c.log.Error().Err(err).Int64("invoice", invoiceID).Msg("invoice recompute failed")
	case err != nil:
		c.log.Warn().Err(err).Int64("invoice", invoiceID).Msg("invoice recompute failed, invoice left unchanged")
	}
}

func (c *Coordinator) recompute(ctx context.Context, invoiceID int64) (string, error) {
	inv, err := c.invoices.Get(ctx, invoiceID)
	if errors.Is(err, errors.NotFound) {
		c.log.Warn().Int64("invoice", invoiceID).Msg("invoice not found, recompute skipped")
		return metrics.RecomputeSkipped, nil
	}
	if err != nil {
		return metrics.RecomputeFailed, errors.Annotate(err, "fetch invoice")
	}
	if inv.Total <= 0 {
		c.log.Warn().Int64("invoice", invoiceID).Float64("total", inv.Total).Msg("invoice total not positive, recompute skipped")
		return metrics.RecomputeSkipped, nil
	}

	paid, err := c.paidInReference(ctx, invoiceID)
	if err != nil {
		return metrics.RecomputeFailed, err
	}
	status := domain.DeriveStatus(inv.Total, paid)

	if err := c.invoices.SetPaidAmount(ctx, invoiceID, paid); err != nil {
		return metrics.RecomputeFailed, fmt.Errorf("%w: paid amount: %w", errPush, err)
	}
	if err := c.invoices.SetStatus(ctx, invoiceID, status); err != nil {
		return metrics.RecomputeFailed, fmt.Errorf("%w: status: %w", errPush, err)
	}

	c.log.Info().Int64("invoice", invoiceID).Float64("paid", paid).Str("status", string(status)).Msg("invoice recomputed")
	return metrics.RecomputeApplied, nil
}

// paidInReference sums the non-canceled payments of an invoice in reference
// units. A payment in a currency the currency service does not know counts
// as 0; an unreachable currency service fails the whole sum, as does a sum
// that overflows float64.
func (c *Coordinator) paidInReference(ctx context.Context, invoiceID int64) (float64, error) {
	payments, err := c.repo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return 0, errors.Annotate(err, "load payments")
	}

	rates := map[string]*domain.Currency{}
	var sum float64
	for _, p := range payments {
		if !p.Counts() {
			continue
		}
		code := domain.NormalizeCode(p.Method)
		if code == "" || code == c.referenceCode {
			sum += p.Amount
			continue
		}

		cur, seen := rates[code]
		if !seen {
			cur, err = c.currencies.GetByCode(ctx, code)
			if errors.Is(err, errors.NotFound) {
				c.log.Warn().Int64("payment", p.ID).Str("currency", code).Msg("unknown currency, payment counts as 0")
				cur = nil
			} else if err != nil {
				return 0, errors.Annotatef(err, "convert payment %d from %s", p.ID, code)
			}
			rates[code] = cur
		}
		if cur == nil {
			continue
		}
		sum += cur.ToReference(p.Amount)
		if math.IsInf(sum, 0) || math.IsNaN(sum) {
			return 0, errors.NotValidf("paid amount of invoice %d overflows at payment %d", invoiceID, p.ID)
		}
	}
	return sum, nil
}
