package repository

import (
	"context"
	"database/sql"

	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
)

// StatementRepo keeps the record of imported bank statements.
type StatementRepo struct {
	db *sql.DB
}

func NewStatementRepo(db *sql.DB) *StatementRepo {
	return &StatementRepo{db: db}
}

// ExistsByHash checks whether a statement with the given file hash has
// already been imported.
func (r *StatementRepo) ExistsByHash(ctx context.Context, hash string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM statement_imports WHERE file_hash = ?", hash,
	).Scan(&count)
	return count > 0, err
}

func (r *StatementRepo) Insert(ctx context.Context, s *domain.StatementImport) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO statement_imports
		(id, format, file_hash, lines, imported, duplicates, rejected, imported_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, string(s.Format), s.FileHash, s.Lines, s.Imported, s.Duplicates, s.Rejected,
		formatTime(s.ImportedAt),
	)
	return errors.Annotatef(err, "insert statement import %s", s.ID)
}

// List returns imports, newest first.
func (r *StatementRepo) List(ctx context.Context) ([]domain.StatementImport, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, format, file_hash, lines, imported, duplicates, rejected, imported_at
		FROM statement_imports ORDER BY imported_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.StatementImport{}
	for rows.Next() {
		var (
			s          domain.StatementImport
			format, at string
		)
		if err := rows.Scan(&s.ID, &format, &s.FileHash, &s.Lines, &s.Imported, &s.Duplicates, &s.Rejected, &at); err != nil {
			return nil, err
		}
		s.Format = domain.StatementFormat(format)
		s.ImportedAt = parseTime(at)
		out = append(out, s)
	}
	return out, rows.Err()
}
