package settlement

import (
	"context"
	"fmt"
	"math"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/repository"
)

// Differences up to this many reference units are rounding, not drift.
const paidTolerance = 0.005

// AuditResult summarises one audit run.
type AuditResult struct {
	Checked          int                  `json:"checked"`
	Consistent       int                  `json:"consistent"`
	PaidMismatches   int                  `json:"paid_mismatches"`
	StatusMismatches int                  `json:"status_mismatches"`
	Orphaned         int                  `json:"orphaned"`
	Skipped          int                  `json:"skipped"`
	Discrepancies    []domain.Discrepancy `json:"discrepancies"`
}

// Auditor compares every invoice that has payments against the paid amount
// its payments add up to. Recompute failures leave such invoices stale; the
// audit finds them and Repair recomputes them.
type Auditor struct {
	coord         *Coordinator
	payments      *repository.PaymentRepo
	discrepancies *repository.DiscrepancyRepo
	clock         clock.Clock
	log           zerolog.Logger
}

func NewAuditor(coord *Coordinator, discrepancies *repository.DiscrepancyRepo) *Auditor {
	return &Auditor{
		coord:         coord,
		payments:      coord.repo,
		discrepancies: discrepancies,
		clock:         coord.clock,
		log:           logger.WithComponent("audit"),
	}
}

// Run audits every invoice with payments and replaces the stored findings
// with the new ones. An unreachable invoice or currency service fails the
// run and keeps the previous findings.
func (a *Auditor) Run(ctx context.Context) (*AuditResult, error) {
	ids, err := a.payments.InvoiceIDs(ctx)
	if err != nil {
		return nil, errors.Annotate(err, "list paid invoices")
	}

	res := &AuditResult{Discrepancies: []domain.Discrepancy{}}
	for _, id := range ids {
		d, err := a.check(ctx, id)
		if err != nil {
			return nil, errors.Annotatef(err, "audit invoice %d", id)
		}
		res.Checked++
		switch {
		case d == nil:
			res.Consistent++
			continue
		case d.Type == domain.DiscrepancyPaidMismatch:
			res.PaidMismatches++
		case d.Type == domain.DiscrepancyStatusMismatch:
			res.StatusMismatches++
		case d.Type == domain.DiscrepancyOrphanedPayments:
			res.Orphaned++
		}
		res.Discrepancies = append(res.Discrepancies, *d)
	}

	if err := a.discrepancies.ReplaceAll(ctx, res.Discrepancies); err != nil {
		return nil, errors.Annotate(err, "store findings")
	}

	a.log.Info().
		Int("checked", res.Checked).
		Int("paid_mismatches", res.PaidMismatches).
		Int("status_mismatches", res.StatusMismatches).
		Int("orphaned", res.Orphaned).
		Msg("audit finished")
	return res, nil
}

// Repair recomputes every invoice the stored findings mark as drifted, then
// audits again. Orphaned payments need a person and are left alone.
func (a *Auditor) Repair(ctx context.Context) (*AuditResult, error) {
	found, _, err := a.discrepancies.List(ctx, repository.DiscrepancyFilter{Limit: math.MaxInt32})
	if err != nil {
		return nil, err
	}
	for _, d := range found {
		if d.Type == domain.DiscrepancyOrphanedPayments {
			continue
		}
		a.log.Info().Int64("invoice", d.InvoiceID).Str("type", string(d.Type)).Msg("repairing invoice")
		a.coord.Recompute(ctx, d.InvoiceID)
	}
	return a.Run(ctx)
}

func (a *Auditor) Findings(ctx context.Context, f repository.DiscrepancyFilter) ([]domain.Discrepancy, int, error) {
	return a.discrepancies.List(ctx, f)
}

func (a *Auditor) Summary(ctx context.Context) (*repository.DiscrepancySummary, error) {
	return a.discrepancies.Summary(ctx)
}

// check returns the finding for one invoice, or nil when it is consistent.
func (a *Auditor) check(ctx context.Context, invoiceID int64) (*domain.Discrepancy, error) {
	inv, err := a.coord.invoices.Get(ctx, invoiceID)
	if errors.Is(err, errors.NotFound) {
		sum, err := a.payments.SumByInvoiceID(ctx, invoiceID)
		if err != nil {
			return nil, err
		}
		return &domain.Discrepancy{
			ID:           fmt.Sprintf("DISC-OP-%d", invoiceID),
			Type:         domain.DiscrepancyOrphanedPayments,
			InvoiceID:    invoiceID,
			ExpectedPaid: sum,
			Difference:   sum,
			Severity:     domain.SeverityHigh,
			Description:  fmt.Sprintf("Payments totalling %.2f point at missing invoice %d", sum, invoiceID),
			DetectedAt:   a.clock.Now(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if inv.Total <= 0 {
		// Recompute never touches these either.
		return nil, nil
	}

	expected, err := a.coord.paidInReference(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	status := domain.DeriveStatus(inv.Total, expected)
	diff := expected - inv.PaidAmount

	d := &domain.Discrepancy{
		InvoiceID:      invoiceID,
		RecordedPaid:   inv.PaidAmount,
		ExpectedPaid:   expected,
		Difference:     diff,
		RecordedStatus: inv.Status,
		ExpectedStatus: status,
		DetectedAt:     a.clock.Now(),
	}
	switch {
	case math.Abs(diff) > paidTolerance:
		d.ID = fmt.Sprintf("DISC-PM-%d", invoiceID)
		d.Type = domain.DiscrepancyPaidMismatch
		d.Severity = severityByAmount(math.Abs(diff))
		d.Description = fmt.Sprintf("Invoice %d records %.2f paid, its payments add up to %.2f",
			invoiceID, inv.PaidAmount, expected)
	case inv.Status != status:
		d.ID = fmt.Sprintf("DISC-SM-%d", invoiceID)
		d.Type = domain.DiscrepancyStatusMismatch
		d.Severity = domain.SeverityLow
		d.Description = fmt.Sprintf("Invoice %d is %s, its payments make it %s", invoiceID, inv.Status, status)
	default:
		return nil, nil
	}
	return d, nil
}

func severityByAmount(amount float64) domain.Severity {
	switch {
	case amount > 500:
		return domain.SeverityHigh
	case amount > 100:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
