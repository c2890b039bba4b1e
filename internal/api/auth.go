package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/auth"
)

type authHandlers struct {
	svc *auth.Service
}

func (h *authHandlers) routes(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/users/refreshToken", h.Refresh)
	r.With(admins).Get("/users", h.ListUsers)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *authHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	pair, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// Refresh trades the bearer refresh token for a new token pair.
func (h *authHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		writeError(w, r, errors.Unauthorizedf("refresh token is missing"))
		return
	}
	pair, err := h.svc.Refresh(r.Context(), raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (h *authHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
