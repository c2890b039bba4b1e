package repository

import (
	"context"
	"database/sql"

	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
)

type CurrencyRepo struct {
	db *sql.DB
}

func NewCurrencyRepo(db *sql.DB) *CurrencyRepo {
	return &CurrencyRepo{db: db}
}

func (r *CurrencyRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM currencies").Scan(&n)
	return n, err
}

func (r *CurrencyRepo) Insert(ctx context.Context, c *domain.Currency) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO currencies (code, name, rate, reference) VALUES (?,?,?,?)",
		c.Code, c.Name, c.Rate, c.Reference,
	)
	if err != nil {
		return errors.Annotatef(err, "insert currency %s", c.Code)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (r *CurrencyRepo) GetByCode(ctx context.Context, code string) (*domain.Currency, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, code, name, rate, reference FROM currencies WHERE code = ?", code)
	c, err := scanCurrency(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("currency %q", code)
	}
	return c, err
}

func (r *CurrencyRepo) GetByID(ctx context.Context, id int64) (*domain.Currency, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, code, name, rate, reference FROM currencies WHERE id = ?", id)
	c, err := scanCurrency(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("currency %d", id)
	}
	return c, err
}

// GetReference returns the currency flagged as reference.
func (r *CurrencyRepo) GetReference(ctx context.Context) (*domain.Currency, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, code, name, rate, reference FROM currencies WHERE reference = 1 ORDER BY id LIMIT 1")
	c, err := scanCurrency(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("reference currency")
	}
	return c, err
}

func (r *CurrencyRepo) List(ctx context.Context) ([]domain.Currency, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, code, name, rate, reference FROM currencies ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Currency
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCurrency(s scanner) (*domain.Currency, error) {
	var c domain.Currency
	if err := s.Scan(&c.ID, &c.Code, &c.Name, &c.Rate, &c.Reference); err != nil {
		return nil, err
	}
	return &c, nil
}
