package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/juju/errors"

	"github.com/ledgerline/billing/internal/ingestion"
	"github.com/ledgerline/billing/internal/repository"
	"github.com/ledgerline/billing/internal/settlement"
)

const maxStatementSize = 32 << 20

type statementHandlers struct {
	imports *ingestion.Service
	auditor *settlement.Auditor
}

func (h *statementHandlers) routes(r chi.Router) {
	if h.imports != nil {
		r.With(admins).Post("/import", h.Import)
		r.With(readers).Get("/imports", h.ListImports)
	}
	if h.auditor != nil {
		r.With(readers).Get("/audit", h.Findings)
		r.With(readers).Get("/audit/summary", h.AuditSummary)
		r.With(admins).Post("/audit", h.RunAudit)
		r.With(admins).Post("/audit/repair", h.Repair)
	}
}

// Import accepts a multipart form with the statement in "file" and its
// format in "format". Without a format the file extension decides.
func (h *statementHandlers) Import(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxStatementSize); err != nil {
		writeError(w, r, errors.NewNotValid(err, "invalid multipart form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, errors.NewNotValid(err, "file field is required"))
		return
	}
	defer file.Close()

	format := strings.ToLower(r.FormValue("format"))
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	}

	data, err := io.ReadAll(io.LimitReader(file, maxStatementSize))
	if err != nil {
		writeError(w, r, errors.Annotate(err, "read file"))
		return
	}

	result, err := h.imports.Import(r.Context(), data, format)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *statementHandlers) ListImports(w http.ResponseWriter, r *http.Request) {
	list, err := h.imports.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *statementHandlers) Findings(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := queryInt(r, "size", 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	found, total, err := h.auditor.Findings(r.Context(), repository.DiscrepancyFilter{
		Type:     q.Get("type"),
		Severity: q.Get("severity"),
		Page:     page,
		Limit:    size,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"discrepancies": found,
		"total":         total,
		"page":          page,
		"size":          size,
	})
}

func (h *statementHandlers) AuditSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.auditor.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *statementHandlers) RunAudit(w http.ResponseWriter, r *http.Request) {
	res, err := h.auditor.Run(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *statementHandlers) Repair(w http.ResponseWriter, r *http.Request) {
	res, err := h.auditor.Repair(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
