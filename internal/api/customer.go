package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/billing/internal/customer"
	"github.com/ledgerline/billing/internal/domain"
)

type customerHandlers struct {
	svc *customer.Service
}

func (h *customerHandlers) routes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(readers)
		r.Get("/", h.List)
		r.Get("/loyal", h.Loyal)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/revenue", h.Revenue)
		r.Get("/{id}/revenue/convert", h.RevenueIn)
		r.Get("/{id}/outstanding", h.Outstanding)
		r.Get("/{id}/invoices", h.Invoices)
		r.Get("/{id}/requested-products", h.RequestedProducts)
	})
	r.Group(func(r chi.Router) {
		r.Use(admins)
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *customerHandlers) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *customerHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *customerHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var c domain.Client
	if err := decode(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.svc.Create(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *customerHandlers) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var c domain.Client
	if err := decode(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := h.svc.Update(r.Context(), id, c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *customerHandlers) Delete(w http.ResponseWriter, r *http.Request) {
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

func (h *customerHandlers) Revenue(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.Revenue(r.Context(), id, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"revenue": v})
}

func (h *customerHandlers) RevenueIn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	year, err := queryInt(r, "year", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cur := r.URL.Query().Get("currency")
	v, err := h.svc.RevenueIn(r.Context(), id, cur, year)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revenue": v, "currency": domain.NormalizeCode(cur)})
}

func (h *customerHandlers) Outstanding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.svc.Outstanding(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"outstanding": v})
}

func (h *customerHandlers) Invoices(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.Invoices(r.Context(), id, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *customerHandlers) Loyal(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.Loyal(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *customerHandlers) RequestedProducts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.svc.RequestedProducts(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
