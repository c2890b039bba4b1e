package domain

import "time"

type DiscrepancyType string

const (
	// DiscrepancyPaidMismatch: the invoice's paid amount differs from the sum
	// of its payments.
	DiscrepancyPaidMismatch DiscrepancyType = "PAID_AMOUNT_MISMATCH"
	// DiscrepancyStatusMismatch: the paid amount is right but the status is
	// not the one it derives.
	DiscrepancyStatusMismatch DiscrepancyType = "STATUS_MISMATCH"
	// DiscrepancyOrphanedPayments: payments point at an invoice that no
	// longer exists.
	DiscrepancyOrphanedPayments DiscrepancyType = "ORPHANED_PAYMENTS"
)

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Discrepancy is one finding of a paid-amount audit. Amounts are in
// reference units.
type Discrepancy struct {
	ID             string          `json:"id"`
	Type           DiscrepancyType `json:"type"`
	InvoiceID      int64           `json:"invoice_id"`
	RecordedPaid   float64         `json:"recorded_paid"`
	ExpectedPaid   float64         `json:"expected_paid"`
	Difference     float64         `json:"difference"`
	RecordedStatus InvoiceStatus   `json:"recorded_status,omitempty"`
	ExpectedStatus InvoiceStatus   `json:"expected_status,omitempty"`
	Severity       Severity        `json:"severity"`
	Description    string          `json:"description"`
	DetectedAt     time.Time       `json:"detected_at"`
}
