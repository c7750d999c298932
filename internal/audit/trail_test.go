package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/domain"
	"kycflow/internal/platform/logger"
	"kycflow/internal/storage"
)

func TestMaskIdentifier(t *testing.T) {
	assert.Equal(t, "1234*******", MaskIdentifier("12345678901"))
	assert.Equal(t, "RC12**", MaskIdentifier("RC1234"))
	assert.Equal(t, "****", MaskIdentifier("1234"))
	assert.Equal(t, "**", MaskIdentifier("12"))
	assert.Equal(t, "", MaskIdentifier(""))

	// Length is always preserved.
	for _, id := range []string{"1", "12345", "12345678901234"} {
		assert.Len(t, MaskIdentifier(id), len(id))
	}
}

func newTrail(t *testing.T) (*Trail, *storage.InMemoryAuditStore) {
	t.Helper()
	store := storage.NewInMemoryAuditStore()
	return NewTrail(store, WithLogger(logger.Discard())), store
}

func TestTrail_AttemptLifecycleOrdering(t *testing.T) {
	ctx := context.Background()
	trail, store := newTrail(t)
	owner := domain.OwnerRef{UserID: "user-1", ListID: "list-1", EntryID: "entry-1"}

	trail.AttemptPending(ctx, domain.KindNationalID, "12345678901", owner, "10.0.0.1")
	trail.APICall(ctx, domain.KindNationalID, "12345678901", "nin", owner, domain.ResultSuccess, 10)
	trail.AttemptResult(ctx, domain.KindNationalID, "12345678901", owner, domain.ResultSuccess, "", "", nil)

	events, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, domain.EventVerificationAttempt, events[0].Type)
	assert.Equal(t, domain.ResultPending, events[0].Result)
	assert.Equal(t, domain.EventAPICall, events[1].Type)
	assert.Equal(t, domain.EventVerificationAttempt, events[2].Type)
	assert.Equal(t, domain.ResultSuccess, events[2].Result)

	// pending <= api_call <= terminal.
	assert.False(t, events[1].Timestamp.Before(events[0].Timestamp))
	assert.False(t, events[2].Timestamp.Before(events[1].Timestamp))

	// Raw identifier never reaches the sink.
	for _, e := range events {
		assert.Equal(t, "1234*******", e.MaskedID)
		assert.NotEmpty(t, e.ID)
	}
}

func TestTrail_FailedFieldsInMetadata(t *testing.T) {
	ctx := context.Background()
	trail, store := newTrail(t)
	owner := domain.OwnerRef{UserID: "user-1"}

	trail.AttemptResult(ctx, domain.KindNationalID, "12345678901", owner,
		domain.ResultFailure, "FIELD_MISMATCH", "fields did not match", []string{"firstName", "dateOfBirth"})

	events, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"firstName", "dateOfBirth"}, events[0].Metadata["failedFields"])
	assert.Equal(t, "FIELD_MISMATCH", events[0].ErrorCode)
}

func TestTrail_AnonymousActorDefault(t *testing.T) {
	ctx := context.Background()
	trail, store := newTrail(t)

	trail.AttemptPending(ctx, domain.KindNationalID, "12345678901", domain.OwnerRef{}, "")

	events, err := store.ListByUser(ctx, domain.ActorAnonymous)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ActorAnonymous, events[0].Actor)
}

type failingAuditStore struct{}

func (failingAuditStore) Append(context.Context, domain.AuditEvent) error {
	return assert.AnError
}
func (failingAuditStore) ListByUser(context.Context, string) ([]domain.AuditEvent, error) {
	return nil, nil
}
func (failingAuditStore) ListRecent(context.Context, time.Time, int) ([]domain.AuditEvent, error) {
	return nil, nil
}

func TestTrail_WriteFailureDoesNotPanicOrPropagate(t *testing.T) {
	trail := NewTrail(failingAuditStore{}, WithLogger(logger.Discard()))

	assert.NotPanics(t, func() {
		trail.AttemptPending(context.Background(), domain.KindNationalID, "12345678901", domain.OwnerRef{}, "")
	})
}

func TestTrail_StatsSince(t *testing.T) {
	ctx := context.Background()
	trail, _ := newTrail(t)
	owner := domain.OwnerRef{UserID: "user-1"}

	for i := 0; i < 9; i++ {
		trail.AttemptResult(ctx, domain.KindNationalID, "12345678901", owner, domain.ResultSuccess, "", "", nil)
	}
	trail.AttemptResult(ctx, domain.KindNationalID, "12345678901", owner, domain.ResultFailure, "NOT_FOUND", "", nil)
	trail.APICall(ctx, domain.KindNationalID, "12345678901", "nin", owner, domain.ResultSuccess, 10)
	// Pending events never count toward attempt totals.
	trail.AttemptPending(ctx, domain.KindNationalID, "12345678901", owner, "")

	stats, err := trail.StatsSince(ctx, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 9, stats.Success)
	assert.Equal(t, 1, stats.Failure)
	assert.Equal(t, 1, stats.APICalls)
}
