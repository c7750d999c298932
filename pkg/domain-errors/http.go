package dErrors

import "net/http"

// httpStatuses maps error codes onto HTTP statuses for the transport layer.
var httpStatuses = map[Code]int{
	CodeInvalidInput:  http.StatusBadRequest,
	CodeInvalidFormat: http.StatusBadRequest,
	CodeBadRequest:    http.StatusBadRequest,
	CodeValidation:    http.StatusUnprocessableEntity,
	CodeNotFound:      http.StatusNotFound,
	CodeUnauthorized:  http.StatusUnauthorized,
	CodeNetwork:       http.StatusBadGateway,
	CodeTimeout:       http.StatusGatewayTimeout,
	CodeFieldMismatch: http.StatusUnprocessableEntity,
	CodeQueueFull:     http.StatusServiceUnavailable,
	CodeRateLimited:   http.StatusTooManyRequests,
	CodeIntegrity:     http.StatusInternalServerError,
	CodeNotConfigured: http.StatusServiceUnavailable,
	CodeConflict:      http.StatusConflict,
	CodeInternal:      http.StatusInternalServerError,
}

// HTTPStatus translates an error's code into the status the transport
// should answer with. Unknown codes fall back to 500.
func HTTPStatus(err error) int {
	if status, ok := httpStatuses[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
