package domain

import "time"

type StatementFormat string

const (
	StatementCSV  StatementFormat = "csv"
	StatementJSON StatementFormat = "json"
)

// StatementLine is one payment read from a bank statement. Row is the
// position in the source file, for error reporting.
type StatementLine struct {
	Row       int
	InvoiceID int64
	Amount    float64
	Currency  string
	Date      time.Time
	Reference string
	Status    PaymentStatus
}

// Payment turns the line into a payment request.
func (l StatementLine) Payment() Payment {
	return Payment{
		InvoiceID: l.InvoiceID,
		Amount:    l.Amount,
		Date:      l.Date,
		Method:    l.Currency,
		Reference: l.Reference,
		Status:    l.Status,
	}
}

// StatementImport records one imported statement file.
type StatementImport struct {
	ID         string          `json:"id"`
	Format     StatementFormat `json:"format"`
	FileHash   string          `json:"file_hash"`
	Lines      int             `json:"lines"`
	Imported   int             `json:"imported"`
	Duplicates int             `json:"duplicates"`
	Rejected   int             `json:"rejected"`
	ImportedAt time.Time       `json:"imported_at"`
}
