package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/httputil"
)

type bulkStartRequest struct {
	ListID string `json:"listId"`
	UserID string `json:"userId"`
}

func (h *Handler) handleBulkStart(w http.ResponseWriter, r *http.Request) {
	body, ok := httputil.Decode[bulkStartRequest](w, r, h.logger)
	if !ok {
		return
	}
	if body.ListID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "list ID is required"))
		return
	}

	job, err := h.bulk.Start(r.Context(), body.ListID, body.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "bulk verification started",
		"job_id", job.ID, "list_id", job.ListID, "total", job.Total)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]any{
		"jobId": job.ID,
		"total": job.Total,
	})
}

func (h *Handler) handleBulkPause(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.bulk.Pause(r.Context(), jobID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"jobId": jobID, "status": "pausing"})
}

func (h *Handler) handleBulkResume(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.bulk.Resume(r.Context(), jobID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"jobId": jobID, "status": "running"})
}

func (h *Handler) handleBulkProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.bulk.Progress(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, progress)
}
