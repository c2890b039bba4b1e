package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/billing/internal/catalog"
	"github.com/ledgerline/billing/internal/domain"
)

type catalogHandlers struct {
	svc *catalog.Service
}

func (h *catalogHandlers) productRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(readers)
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
	})
	r.Group(func(r chi.Router) {
		r.Use(admins)
		r.Post("/", h.CreateProduct)
		r.Put("/{id}", h.UpdateProduct)
		r.Delete("/{id}", h.DeleteProduct)
		r.Put("/{id}/decrease-stock", h.moveStock(h.svc.DecreaseStock))
		r.Put("/{id}/increase-stock", h.moveStock(h.svc.IncreaseStock))
	})
}

func (h *catalogHandlers) categoryRoutes(r chi.Router) {
	r.With(readers).Get("/", h.ListCategories)
	r.With(readers).Get("/{id}", h.GetCategory)
	r.With(admins).Post("/", h.CreateCategory)
	r.With(admins).Delete("/{id}", h.DeleteCategory)
}

func (h *catalogHandlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *catalogHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *catalogHandlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
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

// UpdateProduct expects the version read with the product; a stale version
// is refused with 409.
func (h *catalogHandlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p domain.Product
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

func (h *catalogHandlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
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

type stockFunc func(ctx context.Context, id, quantity int64) (*domain.Product, error)

func (h *catalogHandlers) moveStock(move stockFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err)
			return
		}
		qty, err := queryInt64(r, "quantity")
		if err != nil {
			writeError(w, r, err)
			return
		}
		p, err := move(r.Context(), id, qty)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func (h *catalogHandlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *catalogHandlers) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.svc.GetCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *catalogHandlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var c domain.Category
	if err := decode(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := h.svc.CreateCategory(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *catalogHandlers) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
