package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
)

type PaymentRepo struct {
	db *sql.DB
}

func NewPaymentRepo(db *sql.DB) *PaymentRepo {
	return &PaymentRepo{db: db}
}

const paymentColumns = "id, invoice_id, amount, date, method, reference, status"

func (r *PaymentRepo) Insert(ctx context.Context, p *domain.Payment) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO payments (invoice_id, amount, date, method, reference, status)
		VALUES (?,?,?,?,?,?)`,
		p.InvoiceID, p.Amount, formatTime(p.Date), p.Method, p.Reference, string(p.Status),
	)
	if err != nil {
		return errors.Annotatef(err, "insert payment for invoice %d", p.InvoiceID)
	}
	p.ID, err = res.LastInsertId()
	return err
}

func (r *PaymentRepo) Update(ctx context.Context, p *domain.Payment) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET invoice_id = ?, amount = ?, date = ?, method = ?, reference = ?, status = ?
		WHERE id = ?`,
		p.InvoiceID, p.Amount, formatTime(p.Date), p.Method, p.Reference, string(p.Status), p.ID,
	)
	if err != nil {
		return errors.Annotatef(err, "update payment %d", p.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("payment %d", p.ID)
	}
	return nil
}

func (r *PaymentRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM payments WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("payment %d", id)
	}
	return nil
}

func (r *PaymentRepo) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("payment %d", id)
	}
	return p, err
}

// GetByInvoiceID returns every payment recorded against invoiceID, canceled
// ones included.
func (r *PaymentRepo) GetByInvoiceID(ctx context.Context, invoiceID int64) ([]domain.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE invoice_id = ? ORDER BY id", invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPayments(rows)
}

// SumByInvoiceID sums the raw amounts of non-canceled payments.
func (r *PaymentRepo) SumByInvoiceID(ctx context.Context, invoiceID int64) (float64, error) {
	var sum float64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = ? AND status != ?",
		invoiceID, string(domain.PaymentCanceled),
	).Scan(&sum)
	return sum, err
}

// ExistsByReference reports whether a payment carries reference.
func (r *PaymentRepo) ExistsByReference(ctx context.Context, reference string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments WHERE reference = ?", reference).Scan(&n)
	return n > 0, err
}

// InvoiceIDs lists the distinct invoices that have payments.
func (r *PaymentRepo) InvoiceIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT invoice_id FROM payments ORDER BY invoice_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type PaymentFilter struct {
	Status     string
	Method     string
	InvoiceIDs []int64
	Page       int
	Limit      int
}

func (r *PaymentRepo) List(ctx context.Context, f PaymentFilter) ([]domain.Payment, int, error) {
	where, args := buildPaymentWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM payments"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageArgs(f.Page, f.Limit)
	q := "SELECT " + paymentColumns + " FROM payments" + where + " ORDER BY date DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	payments, err := collectPayments(rows)
	return payments, total, err
}

func buildPaymentWhere(f PaymentFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "upper(status) LIKE ?")
		args = append(args, "%"+strings.ToUpper(f.Status)+"%")
	}
	if f.Method != "" {
		clauses = append(clauses, "upper(method) LIKE ?")
		args = append(args, "%"+strings.ToUpper(f.Method)+"%")
	}
	if f.InvoiceIDs != nil {
		if len(f.InvoiceIDs) == 0 {
			clauses = append(clauses, "0")
		} else {
			ph := make([]string, len(f.InvoiceIDs))
			for i, id := range f.InvoiceIDs {
				ph[i] = "?"
				args = append(args, id)
			}
			clauses = append(clauses, "invoice_id IN ("+strings.Join(ph, ",")+")")
		}
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func collectPayments(rows *sql.Rows) ([]domain.Payment, error) {
	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func scanPayment(s scanner) (*domain.Payment, error) {
	var p domain.Payment
	var date, status string
	if err := s.Scan(&p.ID, &p.InvoiceID, &p.Amount, &date, &p.Method, &p.Reference, &status); err != nil {
		return nil, err
	}
	p.Date = parseTime(date)
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}
