package httptransport

import (
	"net/http"

	"kycflow/internal/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/httputil"
	"kycflow/pkg/platform/middleware/metadata"
)

type issueLinkRequest struct {
	ListID  string `json:"listId"`
	EntryID string `json:"entryId"`
}

func (h *Handler) handleIssueLink(w http.ResponseWriter, r *http.Request) {
	if h.links == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotConfigured, "verification links are not configured"))
		return
	}
	body, ok := httputil.Decode[issueLinkRequest](w, r, h.logger)
	if !ok {
		return
	}

	token, err := h.links.Issue(body.ListID, body.EntryID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"token": token})
}

type linkVerifyRequest struct {
	Token          string        `json:"token"`
	IdentityNumber string        `json:"identityNumber"`
	Record         recordPayload `json:"record"`
}

// handleLinkVerify is the customer self-service path. The link token pins
// the submission to one entry; the actor stays anonymous in the audit
// trail.
func (h *Handler) handleLinkVerify(w http.ResponseWriter, r *http.Request) {
	if h.links == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotConfigured, "verification links are not configured"))
		return
	}
	body, ok := httputil.Decode[linkVerifyRequest](w, r, h.logger)
	if !ok {
		return
	}

	claims, err := h.links.Parse(body.Token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entry, err := h.entries.FindByID(r.Context(), claims.EntryID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if entry.Status == domain.EntryVerified {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "entry is already verified"))
		return
	}

	identityNo := entry.IdentityNo
	if body.IdentityNumber != "" {
		identityNo, err = h.vault.Encrypt(body.IdentityNumber)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if !identityNo.IsEncrypted() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "identity number is required"))
		return
	}

	record := body.Record.toDomain()
	if record == (domain.Record{}) {
		record = entry.Record
	}

	receipt, err := h.queue.Enqueue(domain.VerificationRequest{
		Kind: entry.Kind,
		Owner: domain.OwnerRef{
			ListID:  claims.ListID,
			EntryID: claims.EntryID,
		},
		IdentityNo: identityNo,
		Record:     record,
		ClientIP:   metadata.GetClientIP(r.Context()),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "self-service verification enqueued",
		"item_id", receipt.ID, "list_id", claims.ListID, "entry_id", claims.EntryID)
	httputil.WriteJSON(w, http.StatusAccepted, receipt)
}
