package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/invoice"
)

type invoiceHandlers struct {
	ledger  *invoice.Ledger
	creator *invoice.Creator
}

func (h *invoiceHandlers) routes(r chi.Router) {
	// Open so that payment pages can show invoice details.
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(readers)
		r.Get("/", h.List)
		r.Get("/{id}/total", h.Total)
		r.Get("/paid", h.paidList(false))
		r.Get("/unpaid", h.paidList(true))
		r.Get("/overview", h.Overview)
		r.Get("/products/{productId}/quantity", h.QuantitySold)

		r.Route("/client/{clientId}", func(r chi.Router) {
			r.Get("/", h.ByClient)
			r.Get("/ids", h.IDsByClient)
			r.Get("/total", h.RevenueByClient)
			r.Get("/outstanding", h.Outstanding)
			r.Get("/products", h.RequestedProducts)
			r.Get("/paid", h.clientPaidList(false))
			r.Get("/unpaid", h.clientPaidList(true))
		})

		r.Route("/stats", func(r chi.Router) {
			r.Get("/top-clients", h.TopClients)
			r.Get("/top-products", h.TopProducts)
			r.Get("/trends", h.MonthlyTrends)
			r.Get("/sales-summary", h.SalesSummary)
			r.Get("/counts", h.Counts)
			r.Get("/payment-rate", h.PaymentRate)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(admins)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Put("/{id}/paid-amount", h.SetPaidAmount)
		r.Put("/{id}/status", h.SetStatus)
	})
}

func (h *invoiceHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var req invoice.CreateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.creator.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

func (h *invoiceHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *invoiceHandlers) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "size", 10)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.ledger.List(r.Context(), page, size)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *invoiceHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req invoice.UpdateRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.ledger.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *invoiceHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.ledger.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *invoiceHandlers) Total(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := h.ledger.Total(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"total": total})
}

func (h *invoiceHandlers) SetPaidAmount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := queryFloat(r, "amount")
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.ledger.SetPaidAmount(r.Context(), id, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *invoiceHandlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := h.ledger.SetStatus(r.Context(), id, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *invoiceHandlers) ByClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.ledger.ByClient(r.Context(), clientID, r.URL.Query().Get("status"), year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *invoiceHandlers) IDsByClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	ids, err := h.ledger.IDsByClient(r.Context(), clientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *invoiceHandlers) RevenueByClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := h.ledger.RevenueByClient(r.Context(), clientID, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"total": total})
}

func (h *invoiceHandlers) Outstanding(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.ledger.Outstanding(r.Context(), clientID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"outstanding": v})
}

func (h *invoiceHandlers) RequestedProducts(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.ledger.RequestedProducts(r.Context(), clientID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// paidList lists paid invoices, or the unpaid ones when unpaid is set.
func (h *invoiceHandlers) paidList(unpaid bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.writePaidList(w, r, 0, unpaid)
	}
}

func (h *invoiceHandlers) clientPaidList(unpaid bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID, err := pathID(r, "clientId")
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.writePaidList(w, r, clientID, unpaid)
	}
}

func (h *invoiceHandlers) writePaidList(w http.ResponseWriter, r *http.Request, clientID int64, unpaid bool) {
	var (
		list []domain.Invoice
		err  error
	)
	if unpaid {
		list, err = h.ledger.Unpaid(r.Context(), clientID)
	} else {
		list, err = h.ledger.Paid(r.Context(), clientID)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *invoiceHandlers) QuantitySold(w http.ResponseWriter, r *http.Request) {
	productID, err := pathID(r, "productId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	qty, err := h.ledger.QuantitySold(r.Context(), productID, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"quantity": qty})
}

func (h *invoiceHandlers) TopClients(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.ledger.TopClients(r.Context(), year, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *invoiceHandlers) TopProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.ledger.TopProducts(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *invoiceHandlers) MonthlyTrends(w http.ResponseWriter, r *http.Request) {
	list, err := h.ledger.MonthlyTrends(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *invoiceHandlers) SalesSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.ledger.SalesSummary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *invoiceHandlers) Counts(w http.ResponseWriter, r *http.Request) {
	c, err := h.ledger.Counts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *invoiceHandlers) PaymentRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.ledger.PaymentRate(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (h *invoiceHandlers) Overview(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledger.Overview(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
