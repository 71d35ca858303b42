package handlers

import (
	"net/http"

	"github.com/vidarx/recovery-backend/internal/api/httpx"
	"github.com/vidarx/recovery-backend/internal/api/validate"
	"github.com/vidarx/recovery-backend/internal/services"
)

type BulkHandler struct {
	Bulk *services.BulkService
}

func NewBulkHandler(bulk *services.BulkService) *BulkHandler {
	return &BulkHandler{Bulk: bulk}
}

type bulkRecoverRequest struct {
	TransactionIDs []string `json:"transaction_ids"`
}

// Recover fans the batch out concurrently. The size limit is checked before
// any processor call; per-item failures land in failed_transactions.
func (h *BulkHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req bulkRecoverRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "bad_request", "invalid request body", nil)
		return
	}
	var errs validate.Errs
	if e := validate.NonEmptyList("transaction_ids", len(req.TransactionIDs)); e != nil {
		errs = append(errs, *e)
	}
	if e := validate.MaxItems("transaction_ids", len(req.TransactionIDs), services.MaxBatchSize); e != nil {
		errs = append(errs, *e)
	}
	if len(errs) > 0 {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", errs.Error(), errs)
		return
	}

	summary, err := h.Bulk.BulkRecover(r.Context(), req.TransactionIDs)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, summary)
}
