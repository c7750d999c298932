// Package queue admits verification work, orders it by priority, and
// drives it through a bounded worker pool.
//
// A single dispatch loop owns the pending heap and the active set.
// Admission and status queries never block on worker execution; the
// loop self-stops when idle and restarts on the next enqueue.
package queue

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"kycflow/internal/domain"
	"kycflow/internal/notify"
	"kycflow/internal/platform/metrics"
	"kycflow/internal/verify"
	dErrors "kycflow/pkg/domain-errors"
)

// Runner executes one verification. Implemented by verify.Service.
type Runner interface {
	Run(ctx context.Context, req domain.VerificationRequest) (verify.Outcome, error)
}

type Config struct {
	MaxConcurrent int
	MaxSize       int
	RetryAttempts int
	RetryDelay    time.Duration
	Retention     time.Duration
}

func (c *Config) withDefaults() {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 1000
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.Retention <= 0 {
		c.Retention = 5 * time.Minute
	}
}

// Receipt is returned immediately on admission.
type Receipt struct {
	ID                   string `json:"id"`
	Position             int    `json:"position"`
	EstimatedWaitSeconds int    `json:"estimatedWaitSeconds"`
}

// Stats is a point-in-time snapshot for operators.
type Stats struct {
	Pending            int     `json:"pending"`
	Active             int     `json:"active"`
	Completed          int     `json:"completed"`
	Failed             int     `json:"failed"`
	MaxConcurrent      int     `json:"maxConcurrent"`
	UtilizationPercent int     `json:"utilizationPercent"`
	AverageSeconds     float64 `json:"averageSeconds"`
	Running            bool    `json:"running"`
}

// Queue is the verification admission and dispatch pipeline.
type Queue struct {
	mu       sync.Mutex
	cfg      Config
	runner   Runner
	notifier notify.Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics

	pending itemHeap
	active  map[string]*item
	done    map[string]*item

	seq     uint64
	running bool
	closed  bool
	wake    chan struct{}

	totalSeconds   float64
	finishedCount  int
	completedCount int
	failedCount    int
}

type Option func(*Queue)

func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

func WithNotifier(n notify.Notifier) Option {
	return func(q *Queue) { q.notifier = n }
}

func New(runner Runner, cfg Config, opts ...Option) *Queue {
	cfg.withDefaults()
	q := &Queue{
		cfg:      cfg,
		runner:   runner,
		notifier: notify.Discard{},
		logger:   slog.Default(),
		active:   make(map[string]*item),
		done:     make(map[string]*item),
		wake:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}

// Enqueue admits a request and returns its position and a wait
// estimate. Admission never blocks on worker execution.
func (q *Queue) Enqueue(req domain.VerificationRequest) (Receipt, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return Receipt{}, dErrors.New(dErrors.CodeConflict, "verification queue is shut down")
	}
	if q.pending.Len()+len(q.active) >= q.cfg.MaxSize {
		if q.metrics != nil {
			q.metrics.QueueRejections.Inc()
		}
		return Receipt{}, dErrors.New(dErrors.CodeQueueFull, "verification queue is full")
	}

	q.seq++
	it := &item{
		id:          uuid.NewString(),
		request:     req,
		status:      StatusQueued,
		seq:         q.seq,
		maxAttempts: req.MaxAttempts,
		enqueuedAt:  time.Now(),
	}
	if it.maxAttempts <= 0 {
		it.maxAttempts = q.cfg.RetryAttempts
	}
	heap.Push(&q.pending, it)

	position := q.pending.rank(it) + 1
	receipt := Receipt{
		ID:                   it.id,
		Position:             position,
		EstimatedWaitSeconds: q.estimateLocked(position),
	}

	q.logger.Info("verification queued",
		"item_id", it.id, "kind", string(req.Kind),
		"priority", req.Priority, "position", position)

	q.startLocked()
	q.updateGaugesLocked()
	return receipt, nil
}

// Status returns the snapshot for one item, including position and wait
// estimate while it is still queued. Evicted items report not found.
func (q *Queue) Status(id string) (ItemView, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if it, ok := q.active[id]; ok {
		return it.view(), nil
	}
	if it, ok := q.done[id]; ok {
		return it.view(), nil
	}
	for _, it := range q.pending {
		if it.id == id {
			v := it.view()
			position := q.pending.rank(it) + 1
			v.Position = position
			v.EstimatedWaitSeconds = q.estimateLocked(position)
			return v, nil
		}
	}
	return ItemView{}, dErrors.New(dErrors.CodeNotFound, "queue item not found")
}

// UserItems lists every retained item belonging to a user.
func (q *Queue) UserItems(userID string) []ItemView {
	q.mu.Lock()
	defer q.mu.Unlock()

	var views []ItemView
	for _, it := range q.pending {
		if it.request.Owner.UserID == userID {
			views = append(views, it.view())
		}
	}
	for _, it := range q.active {
		if it.request.Owner.UserID == userID {
			views = append(views, it.view())
		}
	}
	for _, it := range q.done {
		if it.request.Owner.UserID == userID {
			views = append(views, it.view())
		}
	}
	return views
}

func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	avg := q.averageSecondsLocked()
	return Stats{
		Pending:            q.pending.Len(),
		Active:             len(q.active),
		Completed:          q.completedCount,
		Failed:             q.failedCount,
		MaxConcurrent:      q.cfg.MaxConcurrent,
		UtilizationPercent: int(math.Round(float64(len(q.active)) / float64(q.cfg.MaxConcurrent) * 100)),
		AverageSeconds:     avg,
		Running:            q.running,
	}
}

// Close stops admission. In-flight and pending items finish normally.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// startLocked ensures the dispatch loop is alive. Caller holds the lock.
func (q *Queue) startLocked() {
	if q.running {
		q.signalWake()
		return
	}
	q.running = true
	go q.dispatch()
}

// dispatch is the single actor mutating the pending heap and active
// set. It exits when both are empty; Enqueue restarts it.
func (q *Queue) dispatch() {
	for {
		q.mu.Lock()
		for len(q.active) < q.cfg.MaxConcurrent && q.pending.Len() > 0 {
			it := heap.Pop(&q.pending).(*item)
			it.status = StatusProcessing
			it.startedAt = time.Now()
			it.front = false
			it.attempts++
			q.active[it.id] = it
			go q.process(it)
		}
		if q.pending.Len() == 0 && len(q.active) == 0 {
			q.running = false
			q.updateGaugesLocked()
			q.mu.Unlock()
			q.logger.Debug("queue idle, dispatch stopped")
			return
		}
		q.updateGaugesLocked()
		q.mu.Unlock()

		<-q.wake
	}
}

func (q *Queue) process(it *item) {
	outcome, err := q.runner.Run(context.Background(), it.request)

	q.mu.Lock()
	started := it.startedAt
	delete(q.active, it.id)

	if err != nil && q.retryableLocked(it, err) {
		it.status = StatusQueued
		it.startedAt = time.Time{}
		it.lastErr = dErrors.UserMessage(err)
		q.logger.Warn("verification retry scheduled",
			"item_id", it.id, "attempt", it.attempts, "max_attempts", it.maxAttempts)

		// The slot is already released; the item re-enters at the front
		// of the line after the delay and is not double-counted against
		// the concurrency ceiling while it waits.
		time.AfterFunc(q.cfg.RetryDelay, func() {
			q.mu.Lock()
			defer q.mu.Unlock()
			it.front = true
			heap.Push(&q.pending, it)
			q.startLocked()
		})
		q.signalWake()
		q.mu.Unlock()
		return
	}

	it.finishedAt = time.Now()
	q.totalSeconds += it.finishedAt.Sub(started).Seconds()
	q.finishedCount++

	var subject, body string
	if err != nil {
		it.status = StatusFailed
		it.lastErr = dErrors.UserMessage(err)
		q.failedCount++
		subject = "Verification failed"
		body = fmt.Sprintf("Your %s verification could not be completed after %d attempt(s): %s",
			it.request.Kind, it.attempts, it.lastErr)
	} else {
		it.status = StatusCompleted
		it.outcome = &outcome
		q.completedCount++
		subject = "Verification completed"
		body = fmt.Sprintf("Your %s verification request has been completed.", it.request.Kind)
	}

	q.done[it.id] = it
	time.AfterFunc(q.cfg.Retention, func() {
		q.mu.Lock()
		delete(q.done, it.id)
		q.mu.Unlock()
	})

	userID := it.request.Owner.UserID
	q.signalWake()
	q.mu.Unlock()

	q.notifier.Notify(context.Background(), userID, subject, body)
}

func (q *Queue) retryableLocked(it *item, err error) bool {
	if it.attempts >= it.maxAttempts {
		return false
	}
	return dErrors.Retryable(err) || dErrors.HasCode(err, dErrors.CodeRateLimited)
}

// estimateLocked applies ceil(position * averageItemSeconds / effectiveConcurrency).
func (q *Queue) estimateLocked(position int) int {
	avg := q.averageSecondsLocked()
	concurrency := len(q.active)
	if concurrency > q.cfg.MaxConcurrent {
		concurrency = q.cfg.MaxConcurrent
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return int(math.Ceil(float64(position) * avg / float64(concurrency)))
}

// averageSecondsLocked falls back to a nominal two seconds until real
// samples exist.
func (q *Queue) averageSecondsLocked() float64 {
	if q.finishedCount == 0 {
		return 2.0
	}
	return q.totalSeconds / float64(q.finishedCount)
}

func (q *Queue) signalWake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) updateGaugesLocked() {
	if q.metrics == nil {
		return
	}
	q.metrics.QueueDepth.Set(float64(q.pending.Len()))
	q.metrics.ActiveWorkers.Set(float64(len(q.active)))
}
