package storage

import (
	"context"
	"time"

	"kycflow/internal/domain"
)

// Stores are interface-driven to keep the pipeline logic testable and to
// allow swapping in-memory, Redis, or Postgres persistence without
// rewiring business code.
type AuditStore interface {
	Append(ctx context.Context, event domain.AuditEvent) error
	ListByUser(ctx context.Context, userID string) ([]domain.AuditEvent, error)
	ListRecent(ctx context.Context, since time.Time, limit int) ([]domain.AuditEvent, error)
}

type EntryStore interface {
	Save(ctx context.Context, entry domain.Entry) error
	FindByID(ctx context.Context, id string) (domain.Entry, error)
	ListByList(ctx context.Context, listID string) ([]domain.Entry, error)
}

type JobStore interface {
	Save(ctx context.Context, job domain.BulkJob) error
	FindByID(ctx context.Context, id string) (domain.BulkJob, error)
}

type AlertStore interface {
	Save(ctx context.Context, alert domain.Alert) error
	FindByID(ctx context.Context, id string) (domain.Alert, error)
	ListUnacknowledged(ctx context.Context) ([]domain.Alert, error)
}

type HealthStore interface {
	Save(ctx context.Context, record domain.HealthRecord) error
	Find(ctx context.Context, provider string) (domain.HealthRecord, error)
	List(ctx context.Context) ([]domain.HealthRecord, error)
}

type UsageStore interface {
	Save(ctx context.Context, record domain.UsageRecord) error
	Find(ctx context.Context, provider, period, key string) (domain.UsageRecord, error)
}

type NotificationStore interface {
	Save(ctx context.Context, note domain.Notification) error
	ListByUser(ctx context.Context, userID string) ([]domain.Notification, error)
}
