package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"kycflow/internal/domain"
	"kycflow/internal/platform/logger"
	"kycflow/internal/ratelimit"
	"kycflow/internal/registry/mocks"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/circuit"
)

func TestGuard_RateLimitShortCircuits(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return(ProviderNationalID).AnyTimes()
	provider.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(domain.RegistryResult{Person: &domain.PersonRecord{}}, nil).
		Times(1)

	guard := NewGuard(provider, ratelimit.New(1, time.Minute), nil,
		WithGuardLogger(logger.Discard()))

	_, err := guard.Verify(context.Background(), "12345678901")
	require.NoError(t, err)

	_, err = guard.Verify(context.Background(), "12345678901")
	assert.Equal(t, dErrors.CodeRateLimited, dErrors.CodeOf(err))
}

func TestGuard_BreakerOpensOnRetryableFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return(ProviderNationalID).AnyTimes()
	provider.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(domain.RegistryResult{}, dErrors.New(dErrors.CodeNetwork, "down")).
		Times(2)

	breaker := circuit.New("nin", circuit.WithFailureThreshold(2))
	guard := NewGuard(provider, nil, breaker, WithGuardLogger(logger.Discard()))

	for i := 0; i < 2; i++ {
		_, err := guard.Verify(context.Background(), "12345678901")
		require.Error(t, err)
	}
	assert.True(t, breaker.IsOpen())

	// Open circuit rejects without touching the provider.
	_, err := guard.Verify(context.Background(), "12345678901")
	assert.Equal(t, dErrors.CodeNetwork, dErrors.CodeOf(err))
}

func TestGuard_TrialCallClosesCircuitAfterCooldown(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return(ProviderNationalID).AnyTimes()

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	breaker := circuit.New("nin", circuit.WithFailureThreshold(2))
	guard := NewGuard(provider, nil, breaker,
		WithGuardLogger(logger.Discard()),
		WithGuardCooldown(30*time.Second),
		WithGuardClock(func() time.Time { return now }))

	provider.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(domain.RegistryResult{}, dErrors.New(dErrors.CodeNetwork, "down")).
		Times(2)
	for i := 0; i < 2; i++ {
		_, err := guard.Verify(context.Background(), "12345678901")
		require.Error(t, err)
	}
	require.True(t, breaker.IsOpen())

	// Inside the cooldown the provider is never touched.
	_, err := guard.Verify(context.Background(), "12345678901")
	assert.Equal(t, dErrors.CodeNetwork, dErrors.CodeOf(err))

	// The registry recovers; the first call after the cooldown is the
	// trial, and its success closes the circuit for everyone.
	now = now.Add(31 * time.Second)
	provider.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(domain.RegistryResult{Person: &domain.PersonRecord{}}, nil).
		Times(3)
	for i := 0; i < 3; i++ {
		_, err := guard.Verify(context.Background(), "12345678901")
		require.NoError(t, err)
	}
	assert.False(t, breaker.IsOpen())
}

func TestGuard_FailedTrialReArmsCooldown(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return(ProviderNationalID).AnyTimes()
	provider.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(domain.RegistryResult{}, dErrors.New(dErrors.CodeNetwork, "down")).
		Times(3)

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	breaker := circuit.New("nin", circuit.WithFailureThreshold(2))
	guard := NewGuard(provider, nil, breaker,
		WithGuardLogger(logger.Discard()),
		WithGuardCooldown(30*time.Second),
		WithGuardClock(func() time.Time { return now }))

	for i := 0; i < 2; i++ {
		_, err := guard.Verify(context.Background(), "12345678901")
		require.Error(t, err)
	}
	require.True(t, breaker.IsOpen())

	// Trial fails: three verify calls, only one reaches the provider.
	now = now.Add(31 * time.Second)
	for i := 0; i < 3; i++ {
		_, err := guard.Verify(context.Background(), "12345678901")
		require.Error(t, err)
	}
	assert.True(t, breaker.IsOpen())
}

func TestGuard_NotFoundDoesNotTripBreaker(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return(ProviderNationalID).AnyTimes()
	provider.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(domain.RegistryResult{}, dErrors.New(dErrors.CodeNotFound, "no record")).
		Times(5)

	breaker := circuit.New("nin", circuit.WithFailureThreshold(2))
	guard := NewGuard(provider, nil, breaker, WithGuardLogger(logger.Discard()))

	for i := 0; i < 5; i++ {
		_, err := guard.Verify(context.Background(), "12345678901")
		require.Error(t, err)
	}
	assert.False(t, breaker.IsOpen())
}
