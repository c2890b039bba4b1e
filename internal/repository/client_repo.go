package repository

import (
	"context"
	"database/sql"

	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
)

type ClientRepo struct {
	db *sql.DB
}

func NewClientRepo(db *sql.DB) *ClientRepo {
	return &ClientRepo{db: db}
}

func (r *ClientRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM clients").Scan(&n)
	return n, err
}

func (r *ClientRepo) Insert(ctx context.Context, c *domain.Client) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO clients (name, email, address) VALUES (?,?,?)",
		c.Name, c.Email, c.Address,
	)
	if err != nil {
		return errors.Annotatef(err, "insert client %q", c.Name)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (r *ClientRepo) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	var c domain.Client
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, email, address FROM clients WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Email, &c.Address)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("client %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ClientRepo) List(ctx context.Context) ([]domain.Client, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, email, address FROM clients ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Address); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClientRepo) Update(ctx context.Context, c *domain.Client) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE clients SET name = ?, email = ?, address = ? WHERE id = ?",
		c.Name, c.Email, c.Address, c.ID,
	)
	if err != nil {
		return errors.Annotatef(err, "update client %d", c.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("client %d", c.ID)
	}
	return nil
}

func (r *ClientRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFoundf("client %d", id)
	}
	return nil
}
