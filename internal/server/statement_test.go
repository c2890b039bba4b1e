package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/ingestion"
	"github.com/ledgerline/billing/internal/settlement"
)

func (cl caller) upload(path, name, content string, want int, out any) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	cl.c.Assert(err, qt.IsNil)
	_, err = io.WriteString(fw, content)
	cl.c.Assert(err, qt.IsNil)
	cl.c.Assert(mw.Close(), qt.IsNil)

	req, err := http.NewRequest(http.MethodPost, cl.base+path, &body)
	cl.c.Assert(err, qt.IsNil)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+cl.token)
	resp, err := http.DefaultClient.Do(req)
	cl.c.Assert(err, qt.IsNil)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	cl.c.Assert(err, qt.IsNil)
	cl.c.Assert(resp.StatusCode, qt.Equals, want, qt.Commentf("%s", data))
	if out != nil {
		cl.c.Assert(json.Unmarshal(data, out), qt.IsNil)
	}
}

func TestStatementImportAndAudit(t *testing.T) {
	c := qt.New(t)
	anon := caller{c: c, base: startAll(c)}
	admin := anon.as(anon.login("admin", "admin-pass"))
	user := anon.as(anon.login("user", "user-pass"))

	var products []domain.Product
	admin.call(http.MethodGet, "/products?name=logitech", nil, http.StatusOK, &products)
	c.Assert(products, qt.HasLen, 1)

	var inv domain.Invoice
	admin.call(http.MethodPost, "/invoices", map[string]any{
		"client_id": 1,
		"lines":     []map[string]int64{{"product_id": products[0].ID, "quantity": 2}},
	}, http.StatusCreated, &inv)

	statement := fmt.Sprintf("invoice_id,amount,currency,date,reference,status\n"+
		"%[1]d,100,MAD,2026-03-01,BANK-1,COMPLETE\n"+
		"%[1]d,100,MAD,2026-03-01,BANK-1,COMPLETE\n"+
		"%[1]d,100,MAD,2026-03-02,BANK-2,COMPLETE\n"+
		"999,10,MAD,2026-03-02,BANK-3,COMPLETE\n", inv.ID)

	user.upload("/payments/import", "march.csv", statement, http.StatusForbidden, nil)

	var res ingestion.Result
	admin.upload("/payments/import", "march.csv", statement, http.StatusOK, &res)
	c.Assert(res.Lines, qt.Equals, 4)
	c.Assert(res.Imported, qt.Equals, 2)
	c.Assert(res.Duplicates, qt.Equals, 1)
	c.Assert(res.Rejected, qt.HasLen, 1)
	c.Assert(res.Rejected[0].Reference, qt.Equals, "BANK-3")

	admin.call(http.MethodGet, fmt.Sprintf("/invoices/%d", inv.ID), nil, http.StatusOK, &inv)
	c.Assert(inv.PaidAmount, qt.Equals, 200.0)
	c.Assert(inv.Status, qt.Equals, domain.InvoicePaid)

	var again ingestion.Result
	admin.upload("/payments/import", "march.csv", statement, http.StatusOK, &again)
	c.Assert(again.AlreadyImported, qt.IsTrue)
	c.Assert(again.ImportID, qt.Equals, res.ImportID)

	var imports []domain.StatementImport
	user.call(http.MethodGet, "/payments/imports", nil, http.StatusOK, &imports)
	c.Assert(imports, qt.HasLen, 1)

	// A manual status override drifts from what the payments say.
	admin.call(http.MethodPut, fmt.Sprintf("/invoices/%d/status?status=NOT_PAID", inv.ID), nil, http.StatusOK, nil)

	var audit settlement.AuditResult
	user.call(http.MethodPost, "/payments/audit", nil, http.StatusForbidden, nil)
	admin.call(http.MethodPost, "/payments/audit", nil, http.StatusOK, &audit)
	c.Assert(audit.Checked, qt.Equals, 1)
	c.Assert(audit.StatusMismatches, qt.Equals, 1)

	var findings struct {
		Discrepancies []domain.Discrepancy `json:"discrepancies"`
		Total         int                  `json:"total"`
	}
	user.call(http.MethodGet, "/payments/audit?type=STATUS_MISMATCH", nil, http.StatusOK, &findings)
	c.Assert(findings.Total, qt.Equals, 1)
	c.Assert(findings.Discrepancies[0].InvoiceID, qt.Equals, inv.ID)

	admin.call(http.MethodPost, "/payments/audit/repair", nil, http.StatusOK, &audit)
	c.Assert(audit.Consistent, qt.Equals, 1)
	admin.call(http.MethodGet, fmt.Sprintf("/invoices/%d", inv.ID), nil, http.StatusOK, &inv)
	c.Assert(inv.Status, qt.Equals, domain.InvoicePaid)
}
