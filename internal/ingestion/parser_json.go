package ingestion

import (
	"encoding/json"
	"strings"

	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
)

// jsonStatement is the top-level structure of a JSON bank statement.
type jsonStatement struct {
	StatementID string      `json:"statement_id"`
	Currency    string      `json:"currency"`
	Entries     []jsonEntry `json:"entries"`
}

type jsonEntry struct {
	InvoiceID int64   `json:"invoice_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	PaidAt    string  `json:"paid_at"`
	Reference string  `json:"reference"`
	Status    string  `json:"status"`
}

// ParseJSON parses a JSON bank statement. An entry without a currency takes
// the statement's.
func ParseJSON(data []byte) ([]domain.StatementLine, error) {
	var file jsonStatement
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.NewNotValid(err, "unmarshal statement")
	}

	lines := make([]domain.StatementLine, 0, len(file.Entries))
	for i, entry := range file.Entries {
		date, err := parseDate(entry.PaidAt)
		if err != nil {
			return nil, errors.Annotatef(err, "entry %d", i)
		}
		cur := entry.Currency
		if cur == "" {
			cur = file.Currency
		}
		lines = append(lines, domain.StatementLine{
			Row:       i + 1,
			InvoiceID: entry.InvoiceID,
			Amount:    entry.Amount,
			Currency:  cur,
			Date:      date,
			Reference: strings.TrimSpace(entry.Reference),
			Status:    domain.PaymentStatus(strings.ToUpper(strings.TrimSpace(entry.Status))),
		})
	}

	return lines, nil
}
