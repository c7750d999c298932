package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"kycflow/internal/domain"
	"kycflow/internal/platform/metrics"
	"kycflow/internal/ratelimit"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/circuit"
)

const defaultBreakerCooldown = 30 * time.Second

// Guard wraps a Provider with the outbound traffic controls: a
// per-provider rate limit and a circuit breaker. A rejected call never
// reaches the wire; the coded error tells the queue whether to retry.
//
// The breaker itself holds no timers, so the guard supplies the probe
// cadence: once the circuit has been open for the cooldown, a single
// trial call is admitted. Success closes the circuit; failure re-arms
// the cooldown.
type Guard struct {
	provider Provider
	limiter  *ratelimit.Limiter
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	cooldown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	openedAt time.Time
	trial    bool
}

type GuardOption func(*Guard)

func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = logger }
}

func WithGuardMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guard) { g.metrics = m }
}

// WithGuardCooldown sets how long an open circuit waits before
// admitting a trial call.
func WithGuardCooldown(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.cooldown = d
		}
	}
}

func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGuard(provider Provider, limiter *ratelimit.Limiter, breaker *circuit.Breaker, opts ...GuardOption) *Guard {
	g := &Guard{
		provider: provider,
		limiter:  limiter,
		breaker:  breaker,
		logger:   slog.Default(),
		cooldown: defaultBreakerCooldown,
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Guard) Name() string { return g.provider.Name() }

func (g *Guard) Verify(ctx context.Context, identifier string) (domain.RegistryResult, error) {
	if !g.admit() {
		return domain.RegistryResult{}, dErrors.New(dErrors.CodeNetwork, "registry circuit is open")
	}
	if g.limiter != nil {
		if res := g.limiter.Allow(g.provider.Name()); !res.Allowed {
			g.releaseTrial()
			return domain.RegistryResult{}, dErrors.Newf(dErrors.CodeRateLimited,
				"registry rate limit reached, retry in %s", res.RetryAfter.Round(time.Second))
		}
	}

	start := time.Now()
	result, err := g.provider.Verify(ctx, identifier)
	if g.metrics != nil {
		g.metrics.ObserveRegistryCall(g.provider.Name(), time.Since(start))
	}

	if g.breaker != nil {
		// Only infrastructure faults trip the breaker; a not-found or
		// bad-request answer proves the registry is alive.
		if err != nil && dErrors.Retryable(err) {
			if _, change := g.breaker.RecordFailure(); change.Opened {
				g.logger.Warn("registry circuit opened", "provider", g.provider.Name())
			}
		} else {
			if _, change := g.breaker.RecordSuccess(); change.Closed {
				g.logger.Info("registry circuit closed", "provider", g.provider.Name())
			}
		}
		g.settleTrial()
	}
	return result, err
}

// admit decides whether a call may reach the provider. A closed circuit
// admits everything; an open one admits a single trial call per elapsed
// cooldown.
func (g *Guard) admit() bool {
	if g.breaker == nil || !g.breaker.IsOpen() {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.trial || g.now().Sub(g.openedAt) < g.cooldown {
		return false
	}
	g.trial = true
	return true
}

// settleTrial finishes the in-flight trial, if any. A trial that left
// the circuit open re-arms the cooldown from now.
func (g *Guard) settleTrial() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.breaker.IsOpen() {
		g.openedAt = g.now()
	}
	g.trial = false
}

func (g *Guard) releaseTrial() {
	g.mu.Lock()
	g.trial = false
	g.mu.Unlock()
}

func (g *Guard) Probe(ctx context.Context) error {
	return g.provider.Probe(ctx)
}
