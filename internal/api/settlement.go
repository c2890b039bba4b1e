package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/billing/internal/domain"
	"github.com/ledgerline/billing/internal/settlement"
)

type settlementHandlers struct {
	svc *settlement.Coordinator
}

func (h *settlementHandlers) routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(readers)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/invoice/{invoiceId}", h.ByInvoice)
		r.Get("/invoice/{invoiceId}/sum", h.SumByInvoice)
		r.Get("/client/{clientId}", h.ByClient)
	})
	r.Group(func(r chi.Router) {
		r.Use(admins)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
		r.Post("/invoice/{invoiceId}/recompute", h.Recompute)
	})
}

func filterFrom(r *http.Request) (settlement.Filter, error) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		return settlement.Filter{}, err
	}
	size, err := queryInt(r, "size", 0)
	if err != nil {
		return settlement.Filter{}, err
	}
	q := r.URL.Query()
	return settlement.Filter{Status: q.Get("status"), Method: q.Get("method"), Page: page, Size: size}, nil
}

func (h *settlementHandlers) List(w http.ResponseWriter, r *http.Request) {
	f, err := filterFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *settlementHandlers) ByClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "clientId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := filterFrom(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.svc.ByClient(r.Context(), clientID, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *settlementHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *settlementHandlers) ByInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := pathID(r, "invoiceId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.ByInvoice(r.Context(), invoiceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *settlementHandlers) SumByInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := pathID(r, "invoiceId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := h.svc.SumByInvoice(r.Context(), invoiceID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"sum": sum})
}

func (h *settlementHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var p domain.Payment
	if err := decode(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.svc.Create(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *settlementHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p domain.Payment
	if err := decode(r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *settlementHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recompute re-runs the paid-amount derivation of one invoice, for
// invoices left stale by an earlier peer outage.
func (h *settlementHandlers) Recompute(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := pathID(r, "invoiceId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.svc.Recompute(r.Context(), invoiceID)
	w.WriteHeader(http.StatusAccepted)
}
