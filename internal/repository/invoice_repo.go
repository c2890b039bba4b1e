package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
)

type InvoiceRepo struct {
	db *sql.DB
}

func NewInvoiceRepo(db *sql.DB) *InvoiceRepo {
	return &InvoiceRepo{db: db}
}

const invoiceColumns = "id, date, client_id, status, total, paid_amount, remaining"

// Insert stores the invoice and then its lines in one transaction, filling in
// the generated ids and the lines' back-references.
func (r *InvoiceRepo) Insert(ctx context.Context, inv *domain.Invoice) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO invoices (date, client_id, status, total, paid_amount, remaining)
		VALUES (?,?,?,?,?,?)`,
		formatTime(inv.Date), inv.ClientID, string(inv.Status), inv.Total, inv.PaidAmount, inv.Remaining,
	)
	if err != nil {
		return errors.Annotate(err, "insert invoice")
	}
	if inv.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	if err := insertLines(ctx, tx, inv); err != nil {
		return err
	}
	return tx.Commit()
}

// Update replaces the invoice row and all of its lines.
func (r *InvoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE invoices SET date = ?, client_id = ?, status = ?, total = ?, paid_amount = ?, remaining = ?
		WHERE id = ?`,
		formatTime(inv.Date), inv.ClientID, string(inv.Status), inv.Total, inv.PaidAmount, inv.Remaining, inv.ID,
	)
	if err != nil {
		return errors.Annotatef(err, "update invoice %d", inv.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("invoice %d", inv.ID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM invoice_lines WHERE invoice_id = ?", inv.ID); err != nil {
		return errors.Annotatef(err, "clear lines of invoice %d", inv.ID)
	}
	if err := insertLines(ctx, tx, inv); err != nil {
		return err
	}
	return tx.Commit()
}

func insertLines(ctx context.Context, tx *sql.Tx, inv *domain.Invoice) error {
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO invoice_lines (invoice_id, product_id, quantity, price) VALUES (?,?,?,?)")
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := range inv.Lines {
		l := &inv.Lines[i]
		l.InvoiceID = inv.ID
		res, err := stmt.ExecContext(ctx, l.InvoiceID, l.ProductID, l.Quantity, l.Price)
		if err != nil {
			return fmt.Errorf("insert line %d: %w", i, err)
		}
		if l.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

// SaveTotals persists only the derived and payment fields of inv.
func (r *InvoiceRepo) SaveTotals(ctx context.Context, inv *domain.Invoice) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE invoices SET status = ?, total = ?, paid_amount = ?, remaining = ? WHERE id = ?",
		string(inv.Status), inv.Total, inv.PaidAmount, inv.Remaining, inv.ID,
	)
	if err != nil {
		return errors.Annotatef(err, "save totals of invoice %d", inv.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("invoice %d", inv.ID)
	}
	return nil
}

func (r *InvoiceRepo) UpdateStatus(ctx context.Context, id int64, status domain.InvoiceStatus) error {
	res, err := r.db.ExecContext(ctx, "UPDATE invoices SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return errors.Annotatef(err, "update status of invoice %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("invoice %d", id)
	}
	return nil
}

func (r *InvoiceRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM invoices WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("invoice %d", id)
	}
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id int64) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRowContext(ctx,
		"SELECT "+invoiceColumns+" FROM invoices WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("invoice %d", id)
	}
	if err != nil {
		return nil, err
	}
	invs := []domain.Invoice{*inv}
	if err := r.loadLines(ctx, invs); err != nil {
		return nil, err
	}
	return &invs[0], nil
}

type InvoiceFilter struct {
	ClientID  int64
	Status    domain.InvoiceStatus
	NotStatus domain.InvoiceStatus
	Year      int
	// Page and Limit page the result; Limit <= 0 returns every match.
	Page  int
	Limit int
}

// Find returns invoices matching f, with their lines, and the total number
// of matches ignoring paging.
func (r *InvoiceRepo) Find(ctx context.Context, f InvoiceFilter) ([]domain.Invoice, int, error) {
	where, args := buildInvoiceWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM invoices"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := "SELECT " + invoiceColumns + " FROM invoices" + where + " ORDER BY id"
	if f.Limit > 0 {
		limit, offset := pageArgs(f.Page, f.Limit)
		q += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	var invs []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		invs = append(invs, *inv)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadLines(ctx, invs); err != nil {
		return nil, 0, err
	}
	return invs, total, nil
}

// IDsByClient returns the ids of every invoice issued to clientID.
func (r *InvoiceRepo) IDsByClient(ctx context.Context, clientID int64) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id FROM invoices WHERE client_id = ? ORDER BY id", clientID)
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

type ProductQuantity struct {
	ProductID int64
	Quantity  int64
}

// ProductQuantities sums sold quantities per product, largest first. A zero
// clientID or year disables that filter; limit <= 0 returns every product.
func (r *InvoiceRepo) ProductQuantities(ctx context.Context, clientID int64, year, limit int) ([]ProductQuantity, error) {
	q := `SELECT l.product_id, SUM(l.quantity) AS qty
		FROM invoice_lines l JOIN invoices i ON i.id = l.invoice_id`
	var clauses []string
	var args []any
	if clientID != 0 {
		clauses = append(clauses, "i.client_id = ?")
		args = append(args, clientID)
	}
	if year != 0 {
		clauses = append(clauses, "substr(i.date, 1, 4) = ?")
		args = append(args, yearPrefix(year))
	}
	if len(clauses) > 0 {
		q += " WHERE " + strings.Join(clauses, " AND ")
	}
	q += " GROUP BY l.product_id ORDER BY qty DESC, l.product_id"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductQuantity
	for rows.Next() {
		var pq ProductQuantity
		if err := rows.Scan(&pq.ProductID, &pq.Quantity); err != nil {
			return nil, err
		}
		out = append(out, pq)
	}
	return out, rows.Err()
}

// QuantitySold returns how many units of productID were invoiced, optionally
// in one year.
func (r *InvoiceRepo) QuantitySold(ctx context.Context, productID int64, year int) (int64, error) {
	q := `SELECT COALESCE(SUM(l.quantity), 0)
		FROM invoice_lines l JOIN invoices i ON i.id = l.invoice_id
		WHERE l.product_id = ?`
	args := []any{productID}
	if year != 0 {
		q += " AND substr(i.date, 1, 4) = ?"
		args = append(args, yearPrefix(year))
	}
	var n int64
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

type ClientRevenue struct {
	ClientID int64
	Revenue  float64
}

// RevenueByClient ranks clients by the sum of their invoice totals.
func (r *InvoiceRepo) RevenueByClient(ctx context.Context, year, limit int) ([]ClientRevenue, error) {
	q := "SELECT client_id, SUM(total) AS revenue FROM invoices"
	var args []any
	if year != 0 {
		q += " WHERE substr(date, 1, 4) = ?"
		args = append(args, yearPrefix(year))
	}
	q += " GROUP BY client_id ORDER BY revenue DESC, client_id"
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClientRevenue
	for rows.Next() {
		var cr ClientRevenue
		if err := rows.Scan(&cr.ClientID, &cr.Revenue); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (r *InvoiceRepo) loadLines(ctx context.Context, invs []domain.Invoice) error {
	if len(invs) == 0 {
		return nil
	}
	index := make(map[int64]int, len(invs))
	placeholders := make([]string, len(invs))
	args := make([]any, len(invs))
	for i := range invs {
		index[invs[i].ID] = i
		invs[i].Lines = []domain.LineItem{}
		placeholders[i] = "?"
		args[i] = invs[i].ID
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, invoice_id, product_id, quantity, price FROM invoice_lines WHERE invoice_id IN ("+
			strings.Join(placeholders, ",")+") ORDER BY id",
		args...,
	)
	if err != nil {
		return fmt.Errorf("load lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.LineItem
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.ProductID, &l.Quantity, &l.Price); err != nil {
			return err
		}
		i := index[l.InvoiceID]
		invs[i].Lines = append(invs[i].Lines, l)
	}
	return rows.Err()
}

func buildInvoiceWhere(f InvoiceFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.ClientID != 0 {
		clauses = append(clauses, "client_id = ?")
		args = append(args, f.ClientID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.NotStatus != "" {
		clauses = append(clauses, "status != ?")
		args = append(args, string(f.NotStatus))
	}
	if f.Year != 0 {
		clauses = append(clauses, "substr(date, 1, 4) = ?")
		args = append(args, yearPrefix(f.Year))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanInvoice(s scanner) (*domain.Invoice, error) {
	var inv domain.Invoice
	var date, status string
	if err := s.Scan(&inv.ID, &date, &inv.ClientID, &status,
		&inv.Total, &inv.PaidAmount, &inv.Remaining); err != nil {
		return nil, err
	}
	inv.Date = parseTime(date)
	inv.Status = domain.InvoiceStatus(status)
	return &inv, nil
}
