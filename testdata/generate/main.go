// Command generate writes sample bank statements for the payment import.
// Invoice ids 1 to 30 are assumed to exist; a few lines point elsewhere so
// the import has something to reject.
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/ledgerline/billing/internal/domain"
)

const invoices = 30

func main() {
	rng := rand.New(rand.NewSource(42))
	baseDir := findTestdataDir()

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	var lines []domain.StatementLine
	for i := 1; i <= 40; i++ {
		invoiceID := int64(rng.Intn(invoices) + 1)
		// 5% point at invoices that do not exist.
		if rng.Float64() > 0.95 {
			invoiceID = int64(900 + i)
		}

		status := domain.PaymentComplete
		switch roll := rng.Float64(); {
		case roll > 0.9:
			status = domain.PaymentCanceled
		case roll > 0.7:
			status = domain.PaymentPartial
		}

		lines = append(lines, domain.StatementLine{
			Row:       i,
			InvoiceID: invoiceID,
			Amount:    math.Round((20+rng.Float64()*480)*100) / 100,
			Date:      start.AddDate(0, 0, rng.Intn(14)).Add(time.Duration(rng.Intn(24)) * time.Hour),
			Reference: fmt.Sprintf("BANK-%04d", i),
			Status:    status,
		})
	}

	generateCSV(lines[:25], baseDir)
	generateJSON(rng, lines[25:], baseDir)

	fmt.Println("Test data generation complete.")
}

// generateCSV writes MAD lines and repeats the first reference once, which
// the import counts as a duplicate.
func generateCSV(lines []domain.StatementLine, baseDir string) {
	f, err := os.Create(filepath.Join(baseDir, "statement_mad.csv"))
	if err != nil {
		panic(err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{"invoice_id", "amount", "currency", "date", "reference", "status"})
	write := func(l domain.StatementLine) {
		w.Write([]string{
			fmt.Sprint(l.InvoiceID),
			fmt.Sprintf("%.2f", l.Amount),
			"MAD",
			l.Date.Format("2006-01-02"),
			l.Reference,
			string(l.Status),
		})
	}
	for _, l := range lines {
		write(l)
	}
	write(lines[0])

	fmt.Printf("Generated %d CSV lines -> statement_mad.csv\n", len(lines)+1)
}

// generateJSON writes lines in foreign currencies. Entries without their own
// currency take the statement's USD.
func generateJSON(rng *rand.Rand, lines []domain.StatementLine, baseDir string) {
	type entry struct {
		InvoiceID int64   `json:"invoice_id"`
		Amount    float64 `json:"amount"`
		Currency  string  `json:"currency,omitempty"`
		PaidAt    string  `json:"paid_at"`
		Reference string  `json:"reference"`
		Status    string  `json:"status"`
	}
	type statement struct {
		StatementID string  `json:"statement_id"`
		Currency    string  `json:"currency"`
		Entries     []entry `json:"entries"`
	}

	out := statement{StatementID: "FX-2026-03", Currency: "USD"}
	for _, l := range lines {
		e := entry{
			InvoiceID: l.InvoiceID,
			Amount:    math.Round(l.Amount/10*100) / 100,
			PaidAt:    l.Date.Format(time.RFC3339),
			Reference: l.Reference,
			Status:    string(l.Status),
		}
		if rng.Float64() > 0.6 {
			e.Currency = "EUR"
		}
		out.Entries = append(out.Entries, e)
	}

	writeJSONFile(filepath.Join(baseDir, "statement_fx.json"), out)
	fmt.Printf("Generated %d JSON entries -> statement_fx.json\n", len(out.Entries))
}

func writeJSONFile(path string, v any) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		panic(err)
	}
}

func findTestdataDir() string {
	for _, c := range []string{"testdata", "../testdata", "../../testdata"} {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return "testdata"
}
