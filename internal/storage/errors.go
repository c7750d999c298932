package storage

import dErrors "kycflow/pkg/domain-errors"

var (
	// ErrNotFound keeps storage-specific 404s consistent across in-memory
	// and external implementations.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")
)
