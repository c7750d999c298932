// Package health probes the registries, watches the rolling error rate,
// and enforces API call and cost budgets, raising persisted alerts when
// any of them degrade.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kycflow/internal/audit"
	"kycflow/internal/domain"
	"kycflow/internal/platform/metrics"
	"kycflow/internal/registry"
	"kycflow/internal/storage"
	"kycflow/internal/usage"
	dErrors "kycflow/pkg/domain-errors"
)

// Limits are the budget ceilings per provider. Zero disables a check.
type Limits struct {
	DailyCalls   int
	MonthlyCalls int
	DailyCost    float64
	MonthlyCost  float64
}

const budgetWarningPercent = 80.0

type Monitor struct {
	providers map[string]registry.Provider
	trail     *audit.Trail
	tracker   *usage.Tracker
	alerts    storage.AlertStore
	health    storage.HealthStore
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	interval           time.Duration
	errorRateWindow    time.Duration
	errorRateThreshold float64
	errorRateMinSample int
	limits             Limits

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type Option func(*Monitor)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) { m.logger = logger }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Monitor) { m.metrics = mt }
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

func WithErrorRate(threshold float64, minSample int, window time.Duration) Option {
	return func(m *Monitor) {
		m.errorRateThreshold = threshold
		m.errorRateMinSample = minSample
		if window > 0 {
			m.errorRateWindow = window
		}
	}
}

func WithLimits(limits Limits) Option {
	return func(m *Monitor) { m.limits = limits }
}

func NewMonitor(providers map[string]registry.Provider, trail *audit.Trail, tracker *usage.Tracker, alerts storage.AlertStore, health storage.HealthStore, opts ...Option) *Monitor {
	m := &Monitor{
		providers:          providers,
		trail:              trail,
		tracker:            tracker,
		alerts:             alerts,
		health:             health,
		logger:             slog.Default(),
		now:                time.Now,
		interval:           5 * time.Minute,
		errorRateWindow:    time.Hour,
		errorRateThreshold: 0.10,
		errorRateMinSample: 10,
		stop:               make(chan struct{}),
		done:               make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Start runs periodic evaluations until Stop is called. One evaluation
// fires immediately so a fresh deployment surfaces problems right away.
func (m *Monitor) Start() {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.Evaluate(context.Background())
		for {
			select {
			case <-ticker.C:
				m.Evaluate(context.Background())
			case <-m.stop:
				return
			}
		}
	}()
}

func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

// Evaluate runs one full pass: probe every registry, check the rolling
// error rate, and compare usage against the budget limits.
func (m *Monitor) Evaluate(ctx context.Context) {
	for name, provider := range m.providers {
		m.probe(ctx, name, provider)
		m.checkBudget(ctx, name)
	}
	m.checkErrorRate(ctx)
}

// probe sends a deliberately invalid identifier. Any HTTP-level answer,
// including a rejection, proves the registry is reachable.
func (m *Monitor) probe(ctx context.Context, name string, provider registry.Provider) {
	start := m.now()
	err := provider.Probe(ctx)
	elapsed := m.now().Sub(start)

	record := domain.HealthRecord{
		Service:      name,
		Status:       domain.HealthUp,
		ResponseTime: elapsed,
		Timestamp:    m.now(),
	}
	if err != nil {
		record.Status = domain.HealthDown
		record.Message = err.Error()
		record.ErrorCode = string(dErrors.CodeOf(err))
	}
	if saveErr := m.health.Save(ctx, record); saveErr != nil {
		m.logger.Error("health record save failed", "service", name, "error", saveErr)
	}

	if err != nil {
		m.raise(ctx, domain.Alert{
			Type:     domain.AlertAPIDown,
			Service:  name,
			Severity: domain.SeverityCritical,
			Message:  fmt.Sprintf("%s registry is unreachable", name),
			Details: map[string]any{
				"error":          err.Error(),
				"responseTimeMs": elapsed.Milliseconds(),
			},
		})
	}
}

func (m *Monitor) checkErrorRate(ctx context.Context) {
	stats, err := m.trail.StatsSince(ctx, m.now().Add(-m.errorRateWindow))
	if err != nil {
		m.logger.Error("error rate stats unavailable", "error", err)
		return
	}
	attempts := stats.Success + stats.Failure + stats.Errors
	if attempts < m.errorRateMinSample {
		return
	}
	rate := float64(stats.Failure+stats.Errors) / float64(attempts)
	if rate <= m.errorRateThreshold {
		return
	}
	m.raise(ctx, domain.Alert{
		Type:     domain.AlertHighErrorRate,
		Service:  "pipeline",
		Severity: domain.SeverityWarning,
		Message:  fmt.Sprintf("verification error rate %.1f%% over the last %s", rate*100, m.errorRateWindow),
		Details: map[string]any{
			"errorRate": rate,
			"attempts":  attempts,
		},
	})
}

func (m *Monitor) checkBudget(ctx context.Context, provider string) {
	if m.tracker == nil {
		return
	}
	daily, monthly, err := m.tracker.Current(ctx, provider)
	if err != nil {
		m.logger.Error("usage lookup failed", "provider", provider, "error", err)
		return
	}

	m.checkLimit(ctx, provider, "daily_calls", float64(daily.TotalCalls), float64(m.limits.DailyCalls))
	m.checkLimit(ctx, provider, "monthly_calls", float64(monthly.TotalCalls), float64(m.limits.MonthlyCalls))
	m.checkLimit(ctx, provider, "daily_cost", daily.Cost, m.limits.DailyCost)
	m.checkLimit(ctx, provider, "monthly_cost", monthly.Cost, m.limits.MonthlyCost)
}

func (m *Monitor) checkLimit(ctx context.Context, provider, dimension string, used, limit float64) {
	if limit <= 0 {
		return
	}
	percent := used / limit * 100
	if percent < budgetWarningPercent {
		return
	}

	alert := domain.Alert{
		Type:     domain.AlertBudgetWarning,
		Service:  provider,
		Severity: domain.SeverityWarning,
		Message:  fmt.Sprintf("%s %s budget at %.0f%%", provider, dimension, percent),
		Details: map[string]any{
			"dimension": dimension,
			"used":      used,
			"limit":     limit,
			"percent":   percent,
		},
	}
	if percent >= 100 {
		alert.Type = domain.AlertBudgetExceeded
		alert.Severity = domain.SeverityCritical
		alert.Message = fmt.Sprintf("%s %s budget exceeded (%.0f%%)", provider, dimension, percent)
	}
	m.raise(ctx, alert)
}

func (m *Monitor) raise(ctx context.Context, alert domain.Alert) {
	alert.ID = uuid.NewString()
	alert.CreatedAt = m.now()
	if err := m.alerts.Save(ctx, alert); err != nil {
		m.logger.Error("alert save failed", "type", alert.Type, "error", err)
		return
	}
	if m.metrics != nil {
		m.metrics.AlertsGenerated.WithLabelValues(string(alert.Type)).Inc()
	}
	m.logger.Warn("alert raised",
		"type", alert.Type, "service", alert.Service, "severity", alert.Severity, "message", alert.Message)
}

// Unacknowledged lists alerts nobody has claimed yet.
func (m *Monitor) Unacknowledged(ctx context.Context) ([]domain.Alert, error) {
	return m.alerts.ListUnacknowledged(ctx)
}

// Acknowledge marks an alert handled by the named operator.
func (m *Monitor) Acknowledge(ctx context.Context, alertID, who string) (domain.Alert, error) {
	alert, err := m.alerts.FindByID(ctx, alertID)
	if err != nil {
		return domain.Alert{}, err
	}
	if alert.Acknowledged {
		return domain.Alert{}, dErrors.Newf(dErrors.CodeConflict, "alert already acknowledged by %s", alert.AcknowledgedBy)
	}
	alert.Acknowledged = true
	alert.AcknowledgedBy = who
	alert.AcknowledgedAt = m.now()
	if err := m.alerts.Save(ctx, alert); err != nil {
		return domain.Alert{}, err
	}
	return alert, nil
}

// Snapshot returns the latest probe result per registry.
func (m *Monitor) Snapshot(ctx context.Context) ([]domain.HealthRecord, error) {
	return m.health.List(ctx)
}
