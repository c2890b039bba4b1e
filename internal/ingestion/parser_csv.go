package ingestion

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/domain"
)

// csvColumns are the columns a CSV statement must carry, in any order.
// currency, reference and status may be left empty on a row.
var csvColumns = []string{"invoice_id", "amount", "currency", "date", "reference", "status"}

// ParseCSV parses a CSV bank statement.
//
// Expected header:
//
//	invoice_id,amount,currency,date,reference,status
func ParseCSV(data []byte) ([]domain.StatementLine, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, errors.NewNotValid(err, "read header")
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range csvColumns {
		if _, ok := col[name]; !ok {
			return nil, errors.NotValidf("header: missing column %q", name)
		}
	}

	var lines []domain.StatementLine

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewNotValid(err, "read statement")
		}
		// Line in the file, blank lines included.
		lineNum, _ := reader.FieldPos(0)
		if blank(row) {
			continue
		}
		field := func(name string) string {
			if i := col[name]; i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		invoiceID, err := strconv.ParseInt(field("invoice_id"), 10, 64)
		if err != nil {
			return nil, errors.NotValidf("line %d invoice_id %q", lineNum, field("invoice_id"))
		}
		amount, err := strconv.ParseFloat(field("amount"), 64)
		if err != nil {
			return nil, errors.NotValidf("line %d amount %q", lineNum, field("amount"))
		}
		date, err := parseDate(field("date"))
		if err != nil {
			return nil, errors.Annotatef(err, "line %d", lineNum)
		}

		lines = append(lines, domain.StatementLine{
			Row:       lineNum,
			InvoiceID: invoiceID,
			Amount:    amount,
			Currency:  field("currency"),
			Date:      date,
			Reference: field("reference"),
			Status:    domain.PaymentStatus(strings.ToUpper(field("status"))),
		})
	}

	return lines, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
