package repository

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/ledgerline/billing/internal/domain"
)

func TestPaymentSumSkipsCanceled(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	repo := NewPaymentRepo(newTestDB(c))

	for _, p := range []domain.Payment{
		{InvoiceID: 1, Amount: 10, Method: "MAD", Reference: "a", Status: domain.PaymentComplete},
		{InvoiceID: 1, Amount: 5, Method: "EUR", Reference: "b", Status: domain.PaymentPartial},
		{InvoiceID: 1, Amount: 100, Method: "MAD", Reference: "c", Status: domain.PaymentCanceled},
		{InvoiceID: 2, Amount: 7, Method: "MAD", Reference: "d", Status: domain.PaymentComplete},
	} {
		p.Date = time.Now()
		c.Assert(repo.Insert(ctx, &p), qt.IsNil)
	}

	sum, err := repo.SumByInvoiceID(ctx, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(sum, qt.Equals, 15.0)

	all, err := repo.GetByInvoiceID(ctx, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(all, qt.HasLen, 3)

	list, total, err := repo.List(ctx, PaymentFilter{Method: "mad", InvoiceIDs: []int64{1}})
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, 2)
	c.Assert(list, qt.HasLen, 2)

	list, total, err = repo.List(ctx, PaymentFilter{InvoiceIDs: []int64{}})
	c.Assert(err, qt.IsNil)
	c.Assert(total, qt.Equals, 0)
	c.Assert(list, qt.HasLen, 0)
}
