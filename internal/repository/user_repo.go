package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
)

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n)
	return n, err
}

func (r *UserRepo) Insert(ctx context.Context, u *domain.User) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, roles) VALUES (?,?,?)",
		u.Username, u.PasswordHash, strings.Join(u.Roles, ","),
	)
	if err != nil {
		return errors.Annotatef(err, "insert user %q", u.Username)
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, roles FROM users WHERE username = ?", username))
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("user %q", username)
	}
	return u, err
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, username, password_hash, roles FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func scanUser(s scanner) (*domain.User, error) {
	var u domain.User
	var roles string
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &roles); err != nil {
		return nil, err
	}
	if roles != "" {
		u.Roles = strings.Split(roles, ",")
	}
	return &u, nil
}
