package api

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/juju/errors"
	"github.com/rs/zerolog/log"

	"github.com/ledgerline/billing/internal/domain"
)

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

// writeError answers with the status matching err's kind and an
// {"error": "..."} body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ev := log.Debug()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.NotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.NotValid), errors.Is(err, domain.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, errors.AlreadyExists), errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, errors.Forbidden), errors.Is(err, errors.Unauthorized):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.NewNotValid(err, "malformed request body")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NotValidf("%s %q", name, chi.URLParam(r, name))
	}
	return id, nil
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NotValidf("%s %q", key, s)
	}
	return v, nil
}

func queryInt64(r *http.Request, key string) (int64, error) {
	s := r.URL.Query().Get(key)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.NotValidf("%s %q", key, s)
	}
	return v, nil
}

func queryFloat(r *http.Request, key string) (float64, error) {
	s := r.URL.Query().Get(key)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.NotValidf("%s %q", key, s)
	}
	return v, nil
}
