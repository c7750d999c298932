package registry

import (
	"context"
	"time"

	"kycflow/internal/domain"
	dErrors "kycflow/pkg/domain-errors"
)

// withRetry runs one verification call up to maxAttempts times,
// sleeping baseDelay*2^(attempt-1) between attempts. Only retryable
// codes (network, timeout) are retried; everything else returns
// immediately.
func withRetry(ctx context.Context, maxAttempts int, baseDelay time.Duration, call func() (domain.RegistryResult, error)) (domain.RegistryResult, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := call()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !dErrors.Retryable(err) || attempt == maxAttempts {
			return domain.RegistryResult{}, err
		}
		delay := baseDelay << (attempt - 1)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.RegistryResult{}, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "verification cancelled during retry backoff")
		}
	}
	return domain.RegistryResult{}, lastErr
}
