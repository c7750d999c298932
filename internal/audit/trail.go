// Package audit writes the append-only verification audit trail.
//
// Two ordering guarantees hold per verification: the pending event is
// written before the registry call is dispatched, and the terminal
// event only after the call returns. Writes are fail-open: a sink
// failure is logged and counted but never aborts the surrounding
// verification.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kycflow/internal/domain"
	"kycflow/internal/platform/metrics"
	"kycflow/internal/storage"
)

type Trail struct {
	store   storage.AuditStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Trail)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Trail) { t.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Trail) { t.metrics = m }
}

// WithClock overrides the timestamp source for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Trail) { t.now = now }
}

func NewTrail(store storage.AuditStore, opts ...Option) *Trail {
	t := &Trail{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Emit appends one event, stamping ID and timestamp when absent. Sink
// failures are swallowed after logging so callers never unwind a
// verification because the trail was unavailable.
func (t *Trail) Emit(ctx context.Context, event domain.AuditEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = t.now()
	}
	if event.Actor == "" {
		event.Actor = domain.ActorAnonymous
	}
	if err := t.store.Append(ctx, event); err != nil {
		if t.metrics != nil {
			t.metrics.AuditWriteFailures.Inc()
		}
		t.logger.Error("audit write failed",
			"event_type", string(event.Type),
			"result", string(event.Result),
			"error", err)
	}
}

// AttemptPending records the admission of a verification, before any
// registry traffic.
func (t *Trail) AttemptPending(ctx context.Context, kind domain.IdentityKind, identifier string, owner domain.OwnerRef, ip string) {
	t.Emit(ctx, domain.AuditEvent{
		Type:     domain.EventVerificationAttempt,
		Kind:     kind,
		MaskedID: MaskIdentifier(identifier),
		Result:   domain.ResultPending,
		Actor:    owner.UserID,
		IP:       ip,
		Metadata: ownerMeta(owner),
	})
}

// APICall records one outbound registry call and its cost.
func (t *Trail) APICall(ctx context.Context, kind domain.IdentityKind, identifier, provider string, owner domain.OwnerRef, result domain.AuditResult, cost float64) {
	t.Emit(ctx, domain.AuditEvent{
		Type:     domain.EventAPICall,
		Kind:     kind,
		MaskedID: MaskIdentifier(identifier),
		Result:   result,
		Actor:    owner.UserID,
		Provider: provider,
		Cost:     cost,
		Metadata: ownerMeta(owner),
	})
}

// AttemptResult records the terminal outcome of a verification.
func (t *Trail) AttemptResult(ctx context.Context, kind domain.IdentityKind, identifier string, owner domain.OwnerRef, result domain.AuditResult, errCode, errMsg string, failedFields []string) {
	meta := ownerMeta(owner)
	if len(failedFields) > 0 {
		meta["failedFields"] = failedFields
	}
	t.Emit(ctx, domain.AuditEvent{
		Type:      domain.EventVerificationAttempt,
		Kind:      kind,
		MaskedID:  MaskIdentifier(identifier),
		Result:    result,
		ErrorCode: errCode,
		ErrorMsg:  errMsg,
		Actor:     owner.UserID,
		Metadata:  meta,
	})
}

// SecurityEvent records a security-relevant occurrence such as a
// decryption integrity failure or a rejected admission.
func (t *Trail) SecurityEvent(ctx context.Context, action, actor, ip string, meta map[string]any) {
	t.Emit(ctx, domain.AuditEvent{
		Type:     domain.EventSecurityEvent,
		Result:   domain.ResultFailure,
		ErrorMsg: action,
		Actor:    actor,
		IP:       ip,
		Metadata: meta,
	})
}

// EncryptionOp records an encrypt or decrypt over identity fields.
func (t *Trail) EncryptionOp(ctx context.Context, operation string, actor string, result domain.AuditResult) {
	t.Emit(ctx, domain.AuditEvent{
		Type:     domain.EventEncryptionOp,
		Result:   result,
		Actor:    actor,
		Metadata: map[string]any{"operation": operation},
	})
}

// BulkOperation records a bulk controller lifecycle transition.
func (t *Trail) BulkOperation(ctx context.Context, jobID, listID, action string, actor string) {
	t.Emit(ctx, domain.AuditEvent{
		Type:   domain.EventBulkOperation,
		Result: domain.ResultSuccess,
		Actor:  actor,
		Metadata: map[string]any{
			"jobId":  jobID,
			"listId": listID,
			"action": action,
		},
	})
}

// DuplicateSkipped records a bulk entry bypassed because the same
// identifier appears earlier in its list.
func (t *Trail) DuplicateSkipped(ctx context.Context, kind domain.IdentityKind, identifier string, owner domain.OwnerRef, originalEntryID string) {
	meta := ownerMeta(owner)
	meta["action"] = "duplicate_skipped"
	meta["originalEntryId"] = originalEntryID
	t.Emit(ctx, domain.AuditEvent{
		Type:     domain.EventBulkOperation,
		Kind:     kind,
		MaskedID: MaskIdentifier(identifier),
		Result:   domain.ResultSuccess,
		Actor:    owner.UserID,
		Metadata: meta,
	})
}

// ListByUser returns the trail for one actor.
func (t *Trail) ListByUser(ctx context.Context, userID string) ([]domain.AuditEvent, error) {
	return t.store.ListByUser(ctx, userID)
}

// Recent returns up to limit events since the cutoff, newest first.
func (t *Trail) Recent(ctx context.Context, since time.Time, limit int) ([]domain.AuditEvent, error) {
	return t.store.ListRecent(ctx, since, limit)
}

// Stats summarizes attempt outcomes over a window, feeding the error
// rate alarm.
type Stats struct {
	Total    int `json:"total"`
	Success  int `json:"success"`
	Failure  int `json:"failure"`
	Errors   int `json:"errors"`
	APICalls int `json:"apiCalls"`
}

func (t *Trail) StatsSince(ctx context.Context, since time.Time) (Stats, error) {
	events, err := t.store.ListRecent(ctx, since, 0)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	for _, e := range events {
		switch e.Type {
		case domain.EventAPICall:
			stats.APICalls++
		case domain.EventVerificationAttempt:
			switch e.Result {
			case domain.ResultSuccess:
				stats.Total++
				stats.Success++
			case domain.ResultFailure:
				stats.Total++
				stats.Failure++
			case domain.ResultError:
				stats.Total++
				stats.Errors++
			}
		}
	}
	return stats, nil
}

func ownerMeta(owner domain.OwnerRef) map[string]any {
	meta := map[string]any{}
	if owner.ListID != "" {
		meta["listId"] = owner.ListID
	}
	if owner.EntryID != "" {
		meta["entryId"] = owner.EntryID
	}
	return meta
}
