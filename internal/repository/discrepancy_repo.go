package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
)

// DiscrepancyRepo holds the findings of the latest paid-amount audit.
type DiscrepancyRepo struct {
	db *sql.DB
}

func NewDiscrepancyRepo(db *sql.DB) *DiscrepancyRepo {
	return &DiscrepancyRepo{db: db}
}

const discrepancyColumns = `id, type, invoice_id, recorded_paid, expected_paid, difference,
	recorded_status, expected_status, severity, description, detected_at`

// ReplaceAll swaps the stored findings for discs in one transaction.
func (r *DiscrepancyRepo) ReplaceAll(ctx context.Context, discs []domain.Discrepancy) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Annotate(err, "begin")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM discrepancies"); err != nil {
		return errors.Annotate(err, "clear discrepancies")
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO discrepancies ("+discrepancyColumns+") VALUES (?,?,?,?,?,?,?,?,?,?,?)")
	if err != nil {
		return errors.Annotate(err, "prepare")
	}
	defer stmt.Close()

	for i := range discs {
		d := &discs[i]
		_, err := stmt.ExecContext(ctx,
			d.ID, string(d.Type), d.InvoiceID, d.RecordedPaid, d.ExpectedPaid, d.Difference,
			string(d.RecordedStatus), string(d.ExpectedStatus), string(d.Severity), d.Description,
			formatTime(d.DetectedAt),
		)
		if err != nil {
			return errors.Annotatef(err, "insert discrepancy %s", d.ID)
		}
	}
	return errors.Annotate(tx.Commit(), "commit")
}

type DiscrepancyFilter struct {
	Type     string
	Severity string
	Page     int
	Limit    int
}

func (r *DiscrepancyRepo) List(ctx context.Context, f DiscrepancyFilter) ([]domain.Discrepancy, int, error) {
	where, args := buildDiscrepancyWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM discrepancies"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageArgs(f.Page, f.Limit)
	q := "SELECT " + discrepancyColumns + " FROM discrepancies" + where +
		" ORDER BY abs(difference) DESC, invoice_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	discs := []domain.Discrepancy{}
	for rows.Next() {
		var (
			d                                        domain.Discrepancy
			typ, recorded, expected, severity, found string
		)
		err := rows.Scan(&d.ID, &typ, &d.InvoiceID, &d.RecordedPaid, &d.ExpectedPaid, &d.Difference,
			&recorded, &expected, &severity, &d.Description, &found)
		if err != nil {
			return nil, 0, err
		}
		d.Type = domain.DiscrepancyType(typ)
		d.RecordedStatus = domain.InvoiceStatus(recorded)
		d.ExpectedStatus = domain.InvoiceStatus(expected)
		d.Severity = domain.Severity(severity)
		d.DetectedAt = parseTime(found)
		discs = append(discs, d)
	}
	return discs, total, rows.Err()
}

// DiscrepancySummary counts the stored findings.
type DiscrepancySummary struct {
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	BySeverity map[string]int `json:"by_severity"`
	Difference float64        `json:"difference"`
}

func (r *DiscrepancyRepo) Summary(ctx context.Context) (*DiscrepancySummary, error) {
	s := &DiscrepancySummary{ByType: map[string]int{}, BySeverity: map[string]int{}}
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(abs(difference)), 0) FROM discrepancies",
	).Scan(&s.Total, &s.Difference)
	if err != nil {
		return nil, err
	}
	if err := r.countBy(ctx, "type", s.ByType); err != nil {
		return nil, err
	}
	if err := r.countBy(ctx, "severity", s.BySeverity); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *DiscrepancyRepo) countBy(ctx context.Context, col string, m map[string]int) error {
	rows, err := r.db.QueryContext(ctx, "SELECT "+col+", COUNT(*) FROM discrepancies GROUP BY "+col)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return err
		}
		m[key] = n
	}
	return rows.Err()
}

func buildDiscrepancyWhere(f DiscrepancyFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, strings.ToUpper(f.Type))
	}
	if f.Severity != "" {
		clauses = append(clauses, "severity = ?")
		args = append(args, strings.ToUpper(f.Severity))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
