package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/currency"
	"github.com/ledgerline/billing/internal/domain"
)

type currencyHandlers struct {
	svc *currency.Service
}

func (h *currencyHandlers) routes(r chi.Router) {
	r.With(readers).Get("/", h.List)
	r.With(readers).Get("/reference", h.Reference)
	r.With(readers).Get("/id/{id}", h.GetByID)
	r.With(readers).Get("/{code}", h.GetByCode)
	r.With(readers).Get("/convert/{amount}/{from}/{to}", h.Convert)
	r.With(admins).Post("/", h.Create)
}

func (h *currencyHandlers) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *currencyHandlers) Reference(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Reference(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *currencyHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *currencyHandlers) GetByCode(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Convert answers with the bare converted amount.
func (h *currencyHandlers) Convert(w http.ResponseWriter, r *http.Request) {
	amount, err := strconv.ParseFloat(chi.URLParam(r, "amount"), 64)
	if err != nil {
		writeError(w, r, errors.NotValidf("amount %q", chi.URLParam(r, "amount")))
		return
	}
	v, err := h.svc.Convert(r.Context(), amount, chi.URLParam(r, "from"), chi.URLParam(r, "to"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *currencyHandlers) Create(w http.ResponseWriter, r *http.Request) {
	var c domain.Currency
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
