// Package dErrors provides coded domain errors shared across services.
//
// Services wrap infrastructure failures with a code and a short operator
// message; transports translate codes into HTTP statuses and user-facing
// text. The technical detail stays in the error chain for logs and audit,
// never in customer responses.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and retry decisions.
type Code string

const (
	// Caller mistakes. Never retried.
	CodeInvalidInput  Code = "invalid_input"
	CodeInvalidFormat Code = "invalid_format"
	CodeBadRequest    Code = "bad_request"
	CodeValidation    Code = "validation_failed"

	// Registry-reported outcomes. Not retried, surfaced as failures.
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"

	// Transient infrastructure failures. Retried up to the attempt budget.
	CodeNetwork Code = "network_error"
	CodeTimeout Code = "timeout"

	// Verification completed but the data disagreed. Distinct from a
	// technical failure so callers can message it differently.
	CodeFieldMismatch Code = "field_mismatch"

	// Admission and throttling.
	CodeQueueFull   Code = "queue_full"
	CodeRateLimited Code = "rate_limited"

	// Crypto authentication failure. Fatal for the record.
	CodeIntegrity Code = "integrity_error"

	CodeNotConfigured Code = "not_configured"
	CodeConflict      Code = "conflict"
	CodeInternal      Code = "internal_error"
)

// Error is a coded domain error. The message is operator-facing; use
// UserMessage for anything shown to an end customer.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error with no underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the error chain carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Retryable reports whether an error class is worth retrying.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case CodeNetwork, CodeTimeout:
		return true
	}
	return false
}

// userMessages maps codes to customer-safe text. Technical detail is for
// operators and the audit trail only.
var userMessages = map[Code]string{
	CodeInvalidInput:  "An identity number is required. Please provide a valid one.",
	CodeInvalidFormat: "Invalid identity number format. Please check and try again.",
	CodeBadRequest:    "Invalid identity number format. Please check and try again.",
	CodeValidation:    "The information provided could not be validated.",
	CodeNotFound:      "Identity number not found in the registry. Please verify it and try again.",
	CodeUnauthorized:  "Verification service unavailable. Please contact support.",
	CodeNetwork:       "Network error. Please try again later.",
	CodeTimeout:       "Network error. Please try again later.",
	CodeFieldMismatch: "The information provided does not match official records. Please contact your broker.",
	CodeQueueFull:     "The verification service is busy. Please try again later.",
	CodeRateLimited:   "Too many verification requests. Please try again later.",
	CodeIntegrity:     "Stored identity data could not be read. Please contact support.",
	CodeNotConfigured: "Verification service is not configured. Please contact support.",
}

// UserMessage returns a human-readable message safe to show an end customer.
func UserMessage(err error) string {
	if msg, ok := userMessages[CodeOf(err)]; ok {
		return msg
	}
	return "An error occurred during verification. Please contact support."
}
