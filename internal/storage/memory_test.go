package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/domain"
)

func TestInMemoryAuditStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryAuditStore()

	base := time.Now().Add(-time.Hour)
	for i, actor := range []string{"user-1", "user-2", "user-1"} {
		err := store.Append(ctx, domain.AuditEvent{
			ID:        string(rune('a' + i)),
			Type:      domain.EventVerificationAttempt,
			Actor:     actor,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	byUser, err := store.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	recent, err := store.ListRecent(ctx, base.Add(90*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "user-1", recent[0].Actor)

	limited, err := store.ListRecent(ctx, base, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	// Most recent first.
	assert.True(t, limited[0].Timestamp.After(limited[1].Timestamp))
}

func TestInMemoryEntryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryEntryStore()

	entry := domain.Entry{ID: "e1", ListID: "l1", Status: domain.EntryPending}
	require.NoError(t, store.Save(ctx, entry))

	found, err := store.FindByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, entry, found)

	_, err = store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// Re-saving keeps a single list membership.
	entry.Status = domain.EntryVerified
	require.NoError(t, store.Save(ctx, entry))
	listed, err := store.ListByList(ctx, "l1")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, domain.EntryVerified, listed[0].Status)
}

func TestInMemoryAlertStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryAlertStore()

	require.NoError(t, store.Save(ctx, domain.Alert{ID: "a1"}))
	require.NoError(t, store.Save(ctx, domain.Alert{ID: "a2", Acknowledged: true}))
	require.NoError(t, store.Save(ctx, domain.Alert{ID: "a3"}))

	open, err := store.ListUnacknowledged(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "a1", open[0].ID)
	assert.Equal(t, "a3", open[1].ID)
}

func TestInMemoryHealthStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryHealthStore()

	require.NoError(t, store.Save(ctx, domain.HealthRecord{Service: "nin", Status: domain.HealthUp}))
	require.NoError(t, store.Save(ctx, domain.HealthRecord{Service: "cac", Status: domain.HealthDown}))

	found, err := store.Find(ctx, "nin")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthUp, found.Status)

	// Latest probe wins.
	require.NoError(t, store.Save(ctx, domain.HealthRecord{Service: "nin", Status: domain.HealthDown}))
	found, err = store.Find(ctx, "nin")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthDown, found.Status)

	listed, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "cac", listed[0].Service)
	assert.Equal(t, "nin", listed[1].Service)

	_, err = store.Find(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryUsageStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryUsageStore()

	record := domain.UsageRecord{Provider: "nin", Period: "daily", Key: "2026-08-30", TotalCalls: 3}
	require.NoError(t, store.Save(ctx, record))

	found, err := store.Find(ctx, "nin", "daily", "2026-08-30")
	require.NoError(t, err)
	assert.Equal(t, record, found)

	_, err = store.Find(ctx, "nin", "monthly", "2026-08")
	assert.ErrorIs(t, err, ErrNotFound)
}
