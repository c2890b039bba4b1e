package domain

import (
	"time"

	"github.com/juju/errors"
)

type InvoiceStatus string

const (
	InvoiceNotPaid       InvoiceStatus = "NOT_PAID"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
)

// ParseInvoiceStatus validates s against the known invoice statuses.
func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch st := InvoiceStatus(s); st {
	case InvoiceNotPaid, InvoicePartiallyPaid, InvoicePaid:
		return st, nil
	}
	return "", errors.NotValidf("invoice status %q", s)
}

// DeriveStatus maps a paid amount against a total onto an invoice status.
// Nothing paid is NOT_PAID even for a zero total.
func DeriveStatus(total, paid float64) InvoiceStatus {
	switch {
	case paid <= 0:
		return InvoiceNotPaid
	case paid >= total:
		return InvoicePaid
	default:
		return InvoicePartiallyPaid
	}
}

type LineItem struct {
	ID        int64    `json:"id"`
	InvoiceID int64    `json:"invoice_id,omitempty"`
	ProductID int64    `json:"product_id"`
	Quantity  int64    `json:"quantity"`
	Price     float64  `json:"price"`
	Product   *Product `json:"product,omitempty"`
}

// Amount is the line's contribution to the invoice total.
func (l LineItem) Amount() float64 {
	return l.Price * float64(l.Quantity)
}

type Invoice struct {
	ID         int64         `json:"id"`
	Date       time.Time     `json:"date"`
	ClientID   int64         `json:"client_id"`
	Status     InvoiceStatus `json:"status"`
	Total      float64       `json:"total"`
	PaidAmount float64       `json:"paid_amount"`
	Remaining  float64       `json:"remaining"`
	Lines      []LineItem    `json:"lines"`
	Client     *Client       `json:"client,omitempty"`
}

// ComputeTotals recomputes every derived field from the line items and the
// paid amount. It must run on every write of an invoice.
func (inv *Invoice) ComputeTotals() {
	var total float64
	for i := range inv.Lines {
		total += inv.Lines[i].Amount()
		inv.Lines[i].InvoiceID = inv.ID
	}
	inv.Total = total
	inv.applyPaid(inv.PaidAmount)
	inv.Status = DeriveStatus(inv.Total, inv.PaidAmount)
}

// SetPaid records a new paid amount and re-derives remaining and status.
func (inv *Invoice) SetPaid(amount float64) {
	inv.applyPaid(amount)
	inv.Status = DeriveStatus(inv.Total, inv.PaidAmount)
}

func (inv *Invoice) applyPaid(amount float64) {
	if amount < 0 {
		amount = 0
	}
	inv.PaidAmount = amount
	inv.Remaining = inv.Total - amount
	if inv.Remaining < 0 {
		inv.Remaining = 0
	}
}

// Consistent reports whether the stored status matches the derived one.
func (inv *Invoice) Consistent() bool {
	return inv.Status == DeriveStatus(inv.Total, inv.PaidAmount)
}
