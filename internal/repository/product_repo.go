package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
)

type ProductRepo struct {
	db *sql.DB
}

func NewProductRepo(db *sql.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

const productSelect = `SELECT p.id, p.name, p.price, p.quantity, p.version,
	c.id, c.name, c.description
	FROM products p LEFT JOIN categories c ON c.id = p.category_id`

func (r *ProductRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n)
	return n, err
}

func (r *ProductRepo) Insert(ctx context.Context, p *domain.Product) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO products (name, price, quantity, category_id, version) VALUES (?,?,?,?,0)",
		p.Name, p.Price, p.Quantity, categoryID(p),
	)
	if err != nil {
		return errors.Annotatef(err, "insert product %q", p.Name)
	}
	p.ID, err = res.LastInsertId()
	p.Version = 0
	return err
}

func (r *ProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, productSelect+" WHERE p.id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("product %d", id)
	}
	return p, err
}

// List returns products, optionally restricted to names containing name
// (case-insensitive).
func (r *ProductRepo) List(ctx context.Context, name string) ([]domain.Product, error) {
	q := productSelect
	var args []any
	if name != "" {
		q += " WHERE lower(p.name) LIKE ?"
		args = append(args, "%"+strings.ToLower(name)+"%")
	}
	q += " ORDER BY p.id"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Update writes p if its version still matches the stored one and bumps the
// version on success.
func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = ?, price = ?, quantity = ?, category_id = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		p.Name, p.Price, p.Quantity, categoryID(p), p.ID, p.Version,
	)
	if err != nil {
		return errors.Annotatef(err, "update product %d", p.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, p.ID); err != nil {
			return err
		}
		return fmt.Errorf("product %d was modified concurrently (version %d is stale): %w",
			p.ID, p.Version, domain.ErrConflict)
	}
	p.Version++
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("product %d", id)
	}
	return nil
}

// DecreaseStock removes quantity units in a single conditional UPDATE, so two
// concurrent callers can never both pass the stock check and overdraw.
func (r *ProductRepo) DecreaseStock(ctx context.Context, id, quantity int64) (*domain.Product, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET quantity = quantity - ?, version = version + 1
		WHERE id = ? AND quantity >= ?`,
		quantity, id, quantity,
	)
	if err != nil {
		return nil, errors.Annotatef(err, "decrease stock of product %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		p, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("insufficient stock for %s: available %d, requested %d: %w",
			p.Name, p.Quantity, quantity, domain.ErrInvalidState)
	}
	return r.GetByID(ctx, id)
}

func (r *ProductRepo) IncreaseStock(ctx context.Context, id, quantity int64) (*domain.Product, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE products SET quantity = quantity + ?, version = version + 1 WHERE id = ?",
		quantity, id,
	)
	if err != nil {
		return nil, errors.Annotatef(err, "increase stock of product %d", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, errors.NotFoundf("product %d", id)
	}
	return r.GetByID(ctx, id)
}

func (r *ProductRepo) CountByCategory(ctx context.Context, categoryID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM products WHERE category_id = ?", categoryID).Scan(&n)
	return n, err
}

func categoryID(p *domain.Product) any {
	if p.Category == nil || p.Category.ID == 0 {
		return nil
	}
	return p.Category.ID
}

func scanProduct(s scanner) (*domain.Product, error) {
	var p domain.Product
	var catID sql.NullInt64
	var catName, catDesc sql.NullString
	if err := s.Scan(&p.ID, &p.Name, &p.Price, &p.Quantity, &p.Version,
		&catID, &catName, &catDesc); err != nil {
		return nil, err
	}
	if catID.Valid {
		p.Category = &domain.Category{ID: catID.Int64, Name: catName.String, Description: catDesc.String}
	}
	return &p, nil
}

type CategoryRepo struct {
	db *sql.DB
}

func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

func (r *CategoryRepo) Insert(ctx context.Context, c *domain.Category) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO categories (name, description) VALUES (?,?)", c.Name, c.Description)
	if err != nil {
		return errors.Annotatef(err, "insert category %q", c.Name)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (r *CategoryRepo) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	var c domain.Category
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM categories WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Description)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("category %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepo) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	var c domain.Category
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, description FROM categories WHERE name = ?", name,
	).Scan(&c.ID, &c.Name, &c.Description)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("category %q", name)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, description FROM categories ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CategoryRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("category %d", id)
	}
	return nil
}
