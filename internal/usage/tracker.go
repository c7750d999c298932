// Package usage tracks registry call counts and monetary cost per
// provider across daily and monthly periods, feeding the budget alarms.
package usage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"kycflow/internal/domain"
	"kycflow/internal/storage"
)

const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"

	dayKeyLayout   = "2006-01-02"
	monthKeyLayout = "2006-01"
)

// Tracker accumulates per-provider usage. Persistence failures are
// logged and swallowed: budget accounting must never break the
// verification flow it is measuring.
type Tracker struct {
	mu     sync.Mutex
	store  storage.UsageStore
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Tracker)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) { t.logger = logger }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(store storage.UsageStore, opts ...Option) *Tracker {
	t := &Tracker{
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

// RecordCall books one registry call against the current day and month.
func (t *Tracker) RecordCall(ctx context.Context, provider string, success bool, cost float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.bump(ctx, provider, PeriodDaily, now.Format(dayKeyLayout), success, cost, now)
	t.bump(ctx, provider, PeriodMonthly, now.Format(monthKeyLayout), success, cost, now)
}

func (t *Tracker) bump(ctx context.Context, provider, period, key string, success bool, cost float64, now time.Time) {
	record, err := t.store.Find(ctx, provider, period, key)
	if errors.Is(err, storage.ErrNotFound) {
		record = domain.UsageRecord{Provider: provider, Period: period, Key: key}
	} else if err != nil {
		t.logger.Error("usage lookup failed", "provider", provider, "period", period, "error", err)
		return
	}

	record.TotalCalls++
	if success {
		record.SuccessCalls++
	} else {
		record.FailedCalls++
	}
	record.Cost += cost
	record.LastCallAt = now
	record.UpdatedAt = now

	if err := t.store.Save(ctx, record); err != nil {
		t.logger.Error("usage save failed", "provider", provider, "period", period, "error", err)
	}
}

// Current returns today's and this month's usage for a provider. Missing
// periods come back zero-valued, not as errors.
func (t *Tracker) Current(ctx context.Context, provider string) (daily, monthly domain.UsageRecord, err error) {
	now := t.now()

	daily, err = t.store.Find(ctx, provider, PeriodDaily, now.Format(dayKeyLayout))
	if errors.Is(err, storage.ErrNotFound) {
		daily = domain.UsageRecord{Provider: provider, Period: PeriodDaily, Key: now.Format(dayKeyLayout)}
		err = nil
	}
	if err != nil {
		return domain.UsageRecord{}, domain.UsageRecord{}, err
	}

	monthly, err = t.store.Find(ctx, provider, PeriodMonthly, now.Format(monthKeyLayout))
	if errors.Is(err, storage.ErrNotFound) {
		monthly = domain.UsageRecord{Provider: provider, Period: PeriodMonthly, Key: now.Format(monthKeyLayout)}
		err = nil
	}
	if err != nil {
		return domain.UsageRecord{}, domain.UsageRecord{}, err
	}
	return daily, monthly, nil
}
