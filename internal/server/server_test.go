package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/ledgerline/billing/internal/auth"
	"github.com/ledgerline/billing/internal/config"
	"github.com/ledgerline/billing/internal/domain"
)

// startAll runs every role in one process behind a real listener, the peers
// calling back into it over HTTP.
func startAll(c *qt.C) string {
	ts := httptest.NewUnstartedServer(nil)
	base := "http://" + ts.Listener.Addr().String()

	cfg := &config.Config{
		Service:            config.ServiceAll,
		DBPath:             filepath.Join(c.TempDir(), "billing.db"),
		Seed:               true,
		JWTSecret:          "e2e-secret",
		AccessTokenTTL:     time.Minute,
		RefreshTokenTTL:    time.Hour,
		AdminUsername:      "admin",
		AdminPassword:      "admin-pass",
		UserUsername:       "user",
		UserPassword:       "user-pass",
		ReferenceCurrency:  "MAD",
		ClientServiceURL:   base,
		CatalogServiceURL:  base,
		CurrencyServiceURL: base,
		InvoiceServiceURL:  base,
		PeerTimeout:        5 * time.Second,
		PeerRetryAttempts:  1,
		PeerRetryDelay:     10 * time.Millisecond,
	}
	c.Assert(cfg.Validate(), qt.IsNil)

	s, err := New(context.Background(), cfg)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { s.Close() })

	ts.Config.Handler = s.Handler
	ts.Start()
	c.Cleanup(ts.Close)
	return base
}

type caller struct {
	c     *qt.C
	base  string
	token string
}

func (cl caller) as(token string) caller {
	cl.token = token
	return cl
}

// call sends body as JSON, checks the status and decodes the answer into
// out when out is not nil.
func (cl caller) call(method, path string, body any, want int, out any) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		cl.c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, cl.base+path, reader)
	cl.c.Assert(err, qt.IsNil)
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}
	resp, err := http.DefaultClient.Do(req)
	cl.c.Assert(err, qt.IsNil)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	cl.c.Assert(err, qt.IsNil)
	cl.c.Assert(resp.StatusCode, qt.Equals, want, qt.Commentf("%s %s: %s", method, path, data))
	if out != nil {
		cl.c.Assert(json.Unmarshal(data, out), qt.IsNil)
	}
}

func (cl caller) login(username, password string) string {
	var pair auth.TokenPair
	cl.call(http.MethodPost, "/auth/login", map[string]string{"username": username, "password": password}, http.StatusOK, &pair)
	cl.c.Assert(pair.AccessToken, qt.Not(qt.Equals), "")
	return pair.AccessToken
}

func TestInvoiceAndPaymentFlow(t *testing.T) {
	c := qt.New(t)
	anon := caller{c: c, base: startAll(c)}
	admin := anon.as(anon.login("admin", "admin-pass"))

	var products []domain.Product
	admin.call(http.MethodGet, "/products?name=logitech", nil, http.StatusOK, &products)
	c.Assert(products, qt.HasLen, 1)
	mouse := products[0]
	c.Assert(mouse.Price, qt.Equals, 100.0)

	var clients []domain.Client
	admin.call(http.MethodGet, "/clients", nil, http.StatusOK, &clients)
	c.Assert(clients, qt.HasLen, 3)
	ali := clients[0]

	var inv domain.Invoice
	admin.call(http.MethodPost, "/invoices", map[string]any{
		"client_id": ali.ID,
		"lines":     []map[string]int64{{"product_id": mouse.ID, "quantity": 2}},
	}, http.StatusCreated, &inv)
	c.Assert(inv.Total, qt.Equals, 200.0)
	c.Assert(inv.Status, qt.Equals, domain.InvoiceNotPaid)
	c.Assert(inv.Client.Name, qt.Equals, "Ali")

	var after domain.Product
	admin.call(http.MethodGet, fmt.Sprintf("/products/%d", mouse.ID), nil, http.StatusOK, &after)
	c.Assert(after.Quantity, qt.Equals, mouse.Quantity-2)

	// 10 USD at 9.5 is 95 in the reference currency.
	admin.call(http.MethodPost, "/payments", map[string]any{
		"invoice_id": inv.ID, "amount": 10, "method": "usd", "status": "PARTIAL",
	}, http.StatusCreated, nil)
	admin.call(http.MethodGet, fmt.Sprintf("/invoices/%d", inv.ID), nil, http.StatusOK, &inv)
	c.Assert(inv.PaidAmount, qt.Equals, 95.0)
	c.Assert(inv.Status, qt.Equals, domain.InvoicePartiallyPaid)

	admin.call(http.MethodPost, "/payments", map[string]any{
		"invoice_id": inv.ID, "amount": 105, "status": "COMPLETE",
	}, http.StatusCreated, nil)
	admin.call(http.MethodGet, fmt.Sprintf("/invoices/%d", inv.ID), nil, http.StatusOK, &inv)
	c.Assert(inv.PaidAmount, qt.Equals, 200.0)
	c.Assert(inv.Remaining, qt.Equals, 0.0)
	c.Assert(inv.Status, qt.Equals, domain.InvoicePaid)

	var page struct {
		Payments []struct {
			Amount  float64 `json:"amount"`
			Invoice struct {
				ClientName string `json:"client_name"`
			} `json:"invoice"`
		} `json:"payments"`
		Total int `json:"total"`
	}
	admin.call(http.MethodGet, fmt.Sprintf("/payments/client/%d", ali.ID), nil, http.StatusOK, &page)
	c.Assert(page.Total, qt.Equals, 2)
	c.Assert(page.Payments[0].Invoice.ClientName, qt.Equals, "Ali")

	var revenue struct {
		Revenue float64 `json:"revenue"`
	}
	admin.call(http.MethodGet, fmt.Sprintf("/clients/%d/revenue", ali.ID), nil, http.StatusOK, &revenue)
	c.Assert(revenue.Revenue, qt.Equals, 200.0)
}

func TestOverDecrementLeavesStock(t *testing.T) {
	c := qt.New(t)
	anon := caller{c: c, base: startAll(c)}
	admin := anon.as(anon.login("admin", "admin-pass"))

	var products []domain.Product
	admin.call(http.MethodGet, "/products?name=canon", nil, http.StatusOK, &products)
	c.Assert(products, qt.HasLen, 1)
	printer := products[0]

	admin.call(http.MethodPost, "/invoices", map[string]any{
		"client_id": 1,
		"lines":     []map[string]int64{{"product_id": printer.ID, "quantity": printer.Quantity + 1}},
	}, http.StatusBadRequest, nil)

	var after domain.Product
	admin.call(http.MethodGet, fmt.Sprintf("/products/%d", printer.ID), nil, http.StatusOK, &after)
	c.Assert(after.Quantity, qt.Equals, printer.Quantity)

	admin.call(http.MethodPost, "/invoices", map[string]any{
		"client_id": 99,
		"lines":     []map[string]int64{{"product_id": printer.ID, "quantity": 1}},
	}, http.StatusNotFound, nil)
}

func TestAccessControl(t *testing.T) {
	c := qt.New(t)
	anon := caller{c: c, base: startAll(c)}
	user := anon.as(anon.login("user", "user-pass"))

	anon.call(http.MethodGet, "/products", nil, http.StatusForbidden, nil)
	anon.call(http.MethodGet, "/health", nil, http.StatusOK, nil)
	anon.call(http.MethodPost, "/auth/login", map[string]string{"username": "user", "password": "nope"}, http.StatusForbidden, nil)
	anon.as("garbage").call(http.MethodGet, "/products", nil, http.StatusForbidden, nil)

	user.call(http.MethodGet, "/currencies", nil, http.StatusOK, nil)
	user.call(http.MethodGet, "/users", nil, http.StatusForbidden, nil)
	user.call(http.MethodPost, "/payments", map[string]any{"invoice_id": 1, "amount": 5, "status": "COMPLETE"}, http.StatusForbidden, nil)

	var converted float64
	user.call(http.MethodGet, "/currencies/convert/10/mad/USD", nil, http.StatusOK, &converted)
	c.Assert(converted, qt.Equals, 95.0)
	user.call(http.MethodGet, "/currencies/convert/10/XYZ/MAD", nil, http.StatusNotFound, nil)

	req, err := http.NewRequest(http.MethodGet, anon.base+"/metrics", nil)
	c.Assert(err, qt.IsNil)
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	c.Assert(strings.Contains(string(data), "billing_invoices_created_total"), qt.IsTrue)
}

func TestRefreshToken(t *testing.T) {
	c := qt.New(t)
	anon := caller{c: c, base: startAll(c)}

	var pair auth.TokenPair
	anon.call(http.MethodPost, "/auth/login", map[string]string{"username": "admin", "password": "admin-pass"}, http.StatusOK, &pair)

	// A refresh token is not an access token.
	anon.as(pair.RefreshToken).call(http.MethodGet, "/products", nil, http.StatusForbidden, nil)

	var next auth.TokenPair
	anon.as(pair.RefreshToken).call(http.MethodPost, "/users/refreshToken", nil, http.StatusOK, &next)
	anon.as(next.AccessToken).call(http.MethodGet, "/users", nil, http.StatusOK, nil)
}

func TestPaidAmountPushRejectsNonFinite(t *testing.T) {
	c := qt.New(t)
	anon := caller{c: c, base: startAll(c)}
	admin := anon.as(anon.login("admin", "admin-pass"))

	var inv domain.Invoice
	admin.call(http.MethodPost, "/invoices", map[string]any{
		"client_id": 1,
		"lines":     []map[string]int64{{"product_id": 1, "quantity": 1}},
	}, http.StatusCreated, &inv)

	for _, amount := range []string{"NaN", "%2BInf", "-Inf", "1e999"} {
		admin.call(http.MethodPut, fmt.Sprintf("/invoices/%d/paid-amount?amount=%s", inv.ID, amount), nil, http.StatusBadRequest, nil)
	}
	admin.call(http.MethodGet, fmt.Sprintf("/invoices/%d", inv.ID), nil, http.StatusOK, &inv)
	c.Assert(inv.PaidAmount, qt.Equals, 0.0)
	c.Assert(inv.Status, qt.Equals, domain.InvoiceNotPaid)

	// Too large for one payment; an overflowing sum can never be pushed.
	admin.call(http.MethodPost, "/payments", map[string]any{
		"invoice_id": inv.ID, "amount": 1e308, "method": "USD", "status": "COMPLETE",
	}, http.StatusBadRequest, nil)
}
