// Package ingestion imports bank statements: every line becomes a payment
// recorded through the settlement coordinator, so each import recomputes the
// invoices it touches.
package ingestion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/logger"
	"github.com/ledgerline/billing/internal/repository"
)

// Recorder validates and stores one payment.
type Recorder interface {
	Create(ctx context.Context, p domain.Payment) (*domain.Payment, error)
}

// Rejection is a statement line that could not be recorded.
type Rejection struct {
	Row       int    `json:"row"`
	Reference string `json:"reference"`
	Error     string `json:"error"`
}

// Result is returned from an import.
type Result struct {
	ImportID        string      `json:"import_id"`
	AlreadyImported bool        `json:"already_imported"`
	Lines           int         `json:"lines"`
	Imported        int         `json:"imported"`
	Duplicates      int         `json:"duplicates"`
	Rejected        []Rejection `json:"rejected"`
}

// Service handles statement imports.
type Service struct {
	statements *repository.StatementRepo
	payments   *repository.PaymentRepo
	recorder   Recorder
	clock      clock.Clock
	log        zerolog.Logger
}

func NewService(
	statements *repository.StatementRepo,
	payments *repository.PaymentRepo,
	recorder Recorder,
	clk clock.Clock,
) *Service {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Service{
		statements: statements,
		payments:   payments,
		recorder:   recorder,
		clock:      clk,
		log:        logger.WithComponent("ingestion"),
	}
}

// Import parses a statement and records its lines as payments.
//
// A file already imported is skipped whole. Lines are deduplicated by
// payment reference; a line without one gets a reference derived from the
// file and its row, so re-importing a file after a failure never records a
// line twice. An unreachable peer aborts the import without recording the
// file; the lines already recorded are recognised as duplicates on retry.
//
// format must be one of: csv, json
func (s *Service) Import(ctx context.Context, data []byte, format string) (*Result, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.NotValidf("empty statement")
	}

	// Idempotency check via file hash.
	hash := fmt.Sprintf("%x", sha256.Sum256(data))
	exists, err := s.statements.ExistsByHash(ctx, hash)
	if err != nil {
		return nil, errors.Annotate(err, "check hash")
	}
	importID := "STMT-" + hash[:12]
	if exists {
		return &Result{ImportID: importID, AlreadyImported: true, Rejected: []Rejection{}}, nil
	}

	var lines []domain.StatementLine
	switch domain.StatementFormat(format) {
	case domain.StatementCSV:
		lines, err = ParseCSV(data)
	case domain.StatementJSON:
		lines, err = ParseJSON(data)
	default:
		return nil, errors.NotValidf("statement format %q", format)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "parse %s", format)
	}

	res := &Result{ImportID: importID, Lines: len(lines), Rejected: []Rejection{}}
	for _, line := range lines {
		if line.Reference == "" {
			line.Reference = fmt.Sprintf("%s-%d", importID, line.Row)
		}
		if line.Status == "" {
			line.Status = domain.PaymentComplete
		}

		dup, err := s.payments.ExistsByReference(ctx, line.Reference)
		if err != nil {
			return nil, errors.Annotatef(err, "row %d", line.Row)
		}
		if dup {
			res.Duplicates++
			continue
		}

		_, err = s.recorder.Create(ctx, line.Payment())
		switch {
		case err == nil:
			res.Imported++
		case errors.Is(err, errors.NotValid), errors.Is(err, errors.NotFound):
			s.log.Warn().Err(err).Int("row", line.Row).Str("reference", line.Reference).Msg("statement line rejected")
			res.Rejected = append(res.Rejected, Rejection{Row: line.Row, Reference: line.Reference, Error: err.Error()})
		default:
			return nil, errors.Annotatef(err, "row %d", line.Row)
		}
	}

	record := &domain.StatementImport{
		ID:         importID,
		Format:     domain.StatementFormat(format),
		FileHash:   hash,
		Lines:      res.Lines,
		Imported:   res.Imported,
		Duplicates: res.Duplicates,
		Rejected:   len(res.Rejected),
		ImportedAt: s.clock.Now(),
	}
	if err := s.statements.Insert(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("import", importID).
		Str("format", format).
		Int("lines", res.Lines).
		Int("imported", res.Imported).
		Int("duplicates", res.Duplicates).
		Int("rejected", len(res.Rejected)).
		Msg("statement imported")
	return res, nil
}

// List returns past imports, newest first.
func (s *Service) List(ctx context.Context) ([]domain.StatementImport, error) {
	return s.statements.List(ctx)
}
