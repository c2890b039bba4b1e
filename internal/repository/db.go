package repository

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite has a single writer; one connection keeps writers queued in
	// database/sql instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS currencies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			rate REAL NOT NULL,
			reference INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS products (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			price REAL NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity >= 0),
			category_id INTEGER,
			version INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (category_id) REFERENCES categories(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id)`,

		`CREATE TABLE IF NOT EXISTS clients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			address TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS invoices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			client_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			total REAL NOT NULL,
			paid_amount REAL NOT NULL DEFAULT 0,
			remaining REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_client ON invoices(client_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status)`,

		`CREATE TABLE IF NOT EXISTS invoice_lines (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			invoice_id INTEGER NOT NULL,
			product_id INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			price REAL NOT NULL,
			FOREIGN KEY (invoice_id) REFERENCES invoices(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invoice_lines_invoice ON invoice_lines(invoice_id)`,
		`CREATE INDEX IF NOT EXISTS idx_invoice_lines_product ON invoice_lines(product_id)`,

		`CREATE TABLE IF NOT EXISTS payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			invoice_id INTEGER NOT NULL,
			amount REAL NOT NULL,
			date TEXT NOT NULL,
			method TEXT NOT NULL,
			reference TEXT NOT NULL,
			status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments(invoice_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(status)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_reference ON payments(reference)`,

		`CREATE TABLE IF NOT EXISTS statement_imports (
			id TEXT PRIMARY KEY,
			format TEXT NOT NULL,
			file_hash TEXT UNIQUE NOT NULL,
			lines INTEGER NOT NULL,
			imported INTEGER NOT NULL,
			duplicates INTEGER NOT NULL,
			rejected INTEGER NOT NULL,
			imported_at TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS discrepancies (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			invoice_id INTEGER NOT NULL,
			recorded_paid REAL NOT NULL,
			expected_paid REAL NOT NULL,
			difference REAL NOT NULL,
			recorded_status TEXT NOT NULL DEFAULT '',
			expected_status TEXT NOT NULL DEFAULT '',
			severity TEXT NOT NULL,
			description TEXT NOT NULL,
			detected_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_discrepancies_type ON discrepancies(type)`,

		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			roles TEXT NOT NULL
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// yearPrefix renders a year the way it leads a stored RFC3339 timestamp.
func yearPrefix(year int) string {
	return fmt.Sprintf("%04d", year)
}

func pageArgs(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
