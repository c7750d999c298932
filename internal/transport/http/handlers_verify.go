package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kycflow/internal/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/httputil"
	"kycflow/pkg/platform/middleware/metadata"
)

type enqueueRequest struct {
	Kind           string        `json:"kind"`
	IdentityNumber string        `json:"identityNumber"`
	UserID         string        `json:"userId"`
	ListID         string        `json:"listId"`
	EntryID        string        `json:"entryId"`
	Priority       int           `json:"priority"`
	Record         recordPayload `json:"record"`
}

type recordPayload struct {
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	Gender           string `json:"gender"`
	DateOfBirth      string `json:"dateOfBirth"`
	Phone            string `json:"phone"`
	CompanyName      string `json:"companyName"`
	RegistrationNo   string `json:"registrationNo"`
	RegistrationDate string `json:"registrationDate"`
}

func (p recordPayload) toDomain() domain.Record {
	return domain.Record{
		FirstName:        p.FirstName,
		LastName:         p.LastName,
		Gender:           p.Gender,
		DateOfBirth:      p.DateOfBirth,
		Phone:            p.Phone,
		CompanyName:      p.CompanyName,
		RegistrationNo:   p.RegistrationNo,
		RegistrationDate: p.RegistrationDate,
	}
}

// handleEnqueue admits one verification. The identity number arrives in
// plaintext over TLS and is encrypted before it touches the queue.
func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	body, ok := httputil.Decode[enqueueRequest](w, r, h.logger)
	if !ok {
		return
	}

	kind, err := domain.ParseIdentityKind(body.Kind)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if body.IdentityNumber == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "identity number is required"))
		return
	}

	encrypted, err := h.vault.Encrypt(body.IdentityNumber)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "identity number encryption failed", "error", err)
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.queue.Enqueue(domain.VerificationRequest{
		Kind: kind,
		Owner: domain.OwnerRef{
			UserID:  body.UserID,
			ListID:  body.ListID,
			EntryID: body.EntryID,
		},
		IdentityNo: encrypted,
		Record:     body.Record.toDomain(),
		Priority:   body.Priority,
		ClientIP:   metadata.GetClientIP(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "verification enqueued",
		"item_id", receipt.ID, "kind", kind, "position", receipt.Position)
	httputil.WriteJSON(w, http.StatusAccepted, receipt)
}

func (h *Handler) handleItemStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.queue.Status(chi.URLParam(r, "itemID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

func (h *Handler) handleUserItems(w http.ResponseWriter, r *http.Request) {
	items := h.queue.UserItems(chi.URLParam(r, "userID"))
	httputil.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.queue.Stats())
}
