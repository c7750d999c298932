// Package httputil centralizes JSON encoding and domain error translation
// for the HTTP transport so every endpoint answers with the same envelope.
package httputil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	dErrors "kycflow/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope. The description carries the
// customer-safe message; internal failures omit it entirely.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes v with the given status. Encoding failures are beyond
// saving at this point; the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto the HTTP envelope. Internal errors
// never leak detail to the caller.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := ErrorResponse{Error: string(code)}
	if code != dErrors.CodeInternal && code != dErrors.CodeIntegrity {
		resp.ErrorDescription = dErrors.UserMessage(err)
	}
	WriteJSON(w, dErrors.HTTPStatus(err), resp)
}

// Decode reads a JSON request body into T, answering with a bad_request
// envelope on malformed input. The bool reports whether to continue.
func Decode[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (T, bool) {
	var body T
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		if logger != nil {
			logger.WarnContext(r.Context(), "request body rejected", "path", r.URL.Path, "error", err)
		}
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body"))
		var zero T
		return zero, false
	}
	return body, true
}
