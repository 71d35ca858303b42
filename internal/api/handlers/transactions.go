package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vidarx/recovery-backend/internal/api/httpx"
	"github.com/vidarx/recovery-backend/internal/processor"
	repo "github.com/vidarx/recovery-backend/internal/repository"
	"github.com/vidarx/recovery-backend/internal/services"
)

type TransactionsHandler struct {
	Store      repo.Transactions
	Recovery   *services.RecoveryService
	Duplicates *services.DuplicateService
}

func NewTransactionsHandler(store repo.Transactions, rec *services.RecoveryService, dup *services.DuplicateService) *TransactionsHandler {
	return &TransactionsHandler{Store: store, Recovery: rec, Duplicates: dup}
}

func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := 50, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	txns, err := h.Store.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, txns)
}

func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.Store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tx)
}

// Recover resolves a single timed-out transaction by querying its processor.
// A staleness override is a successful outcome with a warning, never an
// error.
func (h *TransactionsHandler) Recover(w http.ResponseWriter, r *http.Request) {
	result, err := h.Recovery.Recover(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, result)
}

func (h *TransactionsHandler) FindDuplicates(w http.ResponseWriter, r *http.Request) {
	report, err := h.Duplicates.FindDuplicates(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

// writeServiceError maps the service error taxonomy onto HTTP: unknown id is
// 404, an unreachable processor is 502 (distinguishable from a declined
// outcome), an oversized batch is 422.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repo.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, processor.ErrUnavailable):
		httpx.WriteError(w, http.StatusBadGateway, "processor_unavailable", err.Error(), nil)
	case errors.Is(err, services.ErrBatchTooLarge):
		httpx.WriteError(w, http.StatusUnprocessableEntity, "batch_too_large", err.Error(), nil)
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error", err.Error(), nil)
	}
}
