package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/httputil"
)

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.monitor.Unacknowledged(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alerts)
}

type acknowledgeRequest struct {
	AcknowledgedBy string `json:"acknowledgedBy"`
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	body, ok := httputil.Decode[acknowledgeRequest](w, r, h.logger)
	if !ok {
		return
	}
	if body.AcknowledgedBy == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "acknowledgedBy is required"))
		return
	}

	alert, err := h.monitor.Acknowledge(r.Context(), chi.URLParam(r, "alertID"), body.AcknowledgedBy)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alert)
}

func (h *Handler) handleRegistryHealth(w http.ResponseWriter, r *http.Request) {
	records, err := h.monitor.Snapshot(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) handleUserNotifications(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotConfigured, "notifications are not configured"))
		return
	}
	notifications, err := h.notifier.ListByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, notifications)
}

// handleUserAudit returns a user's audit history. Identity numbers in the
// events were masked at write time; nothing here can unmask them.
func (h *Handler) handleUserAudit(w http.ResponseWriter, r *http.Request) {
	events, err := h.trail.ListByUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, events)
}
