package domain

import (
	"time"

	"github.com/juju/errors"
)

type PaymentStatus string

const (
	PaymentComplete PaymentStatus = "COMPLETE"
	PaymentPartial  PaymentStatus = "PARTIAL"
	PaymentCanceled PaymentStatus = "CANCELED"
)

// ParsePaymentStatus validates s against the known payment statuses.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch st := PaymentStatus(s); st {
	case PaymentComplete, PaymentPartial, PaymentCanceled:
		return st, nil
	}
	return "", errors.NotValidf("payment status %q: must be COMPLETE, PARTIAL or CANCELED", s)
}

// Payment is a settlement recorded against an invoice. Method holds the
// currency code the amount is expressed in.
type Payment struct {
	ID        int64         `json:"id"`
	InvoiceID int64         `json:"invoice_id"`
	Amount    float64       `json:"amount"`
	Date      time.Time     `json:"date"`
	Method    string        `json:"method"`
	Reference string        `json:"reference"`
	Status    PaymentStatus `json:"status"`
}

// Counts reports whether the payment takes part in paid-amount sums.
func (p Payment) Counts() bool {
	return p.Status != PaymentCanceled
}
