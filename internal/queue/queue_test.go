package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/internal/domain"
	"kycflow/internal/platform/logger"
	"kycflow/internal/verify"
	dErrors "kycflow/pkg/domain-errors"
)

type runnerFunc func(ctx context.Context, req domain.VerificationRequest) (verify.Outcome, error)

func (f runnerFunc) Run(ctx context.Context, req domain.VerificationRequest) (verify.Outcome, error) {
	return f(ctx, req)
}

func okRunner(delay time.Duration) runnerFunc {
	return func(context.Context, domain.VerificationRequest) (verify.Outcome, error) {
		time.Sleep(delay)
		return verify.Outcome{Matched: true, Status: domain.EntryVerified}, nil
	}
}

func request(priority int, entryID string) domain.VerificationRequest {
	return domain.VerificationRequest{
		Kind:     domain.KindNationalID,
		Owner:    domain.OwnerRef{UserID: "user-1", EntryID: entryID},
		Priority: priority,
	}
}

func waitIdle(t *testing.T, q *Queue) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s := q.Stats()
		if s.Pending == 0 && s.Active == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("queue did not drain in time")
}

func TestQueue_PriorityOrdering(t *testing.T) {
	var mu sync.Mutex
	var order []string

	gate := make(chan struct{})
	runner := runnerFunc(func(_ context.Context, req domain.VerificationRequest) (verify.Outcome, error) {
		<-gate
		mu.Lock()
		order = append(order, req.Owner.EntryID)
		mu.Unlock()
		return verify.Outcome{}, nil
	})

	q := New(runner, Config{MaxConcurrent: 1}, WithLogger(logger.Discard()))

	// First item is picked up immediately; hold it on the gate so the
	// rest queue up and get reordered by priority.
	_, err := q.Enqueue(request(0, "gate"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	for _, tc := range []struct {
		priority int
		id       string
	}{{1, "p1"}, {5, "p5"}, {3, "p3"}} {
		_, err := q.Enqueue(request(tc.priority, tc.id))
		require.NoError(t, err)
	}
	close(gate)
	waitIdle(t, q)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"gate", "p5", "p3", "p1"}, order)
}

func TestQueue_EqualPriorityKeepsArrivalOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	gate := make(chan struct{})
	runner := runnerFunc(func(_ context.Context, req domain.VerificationRequest) (verify.Outcome, error) {
		<-gate
		mu.Lock()
		order = append(order, req.Owner.EntryID)
		mu.Unlock()
		return verify.Outcome{}, nil
	})

	q := New(runner, Config{MaxConcurrent: 1}, WithLogger(logger.Discard()))
	_, err := q.Enqueue(request(0, "gate"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	for _, id := range []string{"a", "b", "c", "d"} {
		_, err := q.Enqueue(request(2, id))
		require.NoError(t, err)
	}
	close(gate)
	waitIdle(t, q)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"gate", "a", "b", "c", "d"}, order)
}

func TestQueue_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32

	runner := runnerFunc(func(context.Context, domain.VerificationRequest) (verify.Outcome, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return verify.Outcome{}, nil
	})

	q := New(runner, Config{MaxConcurrent: 3}, WithLogger(logger.Discard()))
	for i := 0; i < 12; i++ {
		_, err := q.Enqueue(request(0, "e"))
		require.NoError(t, err)
	}
	waitIdle(t, q)

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 12, q.Stats().Completed)
}

func TestQueue_FullRejectsAdmission(t *testing.T) {
	block := make(chan struct{})
	runner := runnerFunc(func(context.Context, domain.VerificationRequest) (verify.Outcome, error) {
		<-block
		return verify.Outcome{}, nil
	})

	q := New(runner, Config{MaxConcurrent: 1, MaxSize: 3}, WithLogger(logger.Discard()))
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(request(0, "e"))
		require.NoError(t, err)
	}

	_, err := q.Enqueue(request(0, "overflow"))
	assert.Equal(t, dErrors.CodeQueueFull, dErrors.CodeOf(err))
	close(block)
	waitIdle(t, q)
}

func TestQueue_RetryFrontOfLineAndAttemptBudget(t *testing.T) {
	var attempts atomic.Int32
	runner := runnerFunc(func(context.Context, domain.VerificationRequest) (verify.Outcome, error) {
		attempts.Add(1)
		return verify.Outcome{}, dErrors.New(dErrors.CodeNetwork, "down")
	})

	q := New(runner, Config{MaxConcurrent: 1, RetryAttempts: 3, RetryDelay: 10 * time.Millisecond, Retention: time.Minute},
		WithLogger(logger.Discard()))

	receipt, err := q.Enqueue(request(0, "flaky"))
	require.NoError(t, err)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if view, err := q.Status(receipt.ID); err == nil && view.Status == StatusFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	view, err := q.Status(receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, view.Status)
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, 3, view.Attempts)
}

func TestQueue_RetriedItemJumpsQueue(t *testing.T) {
	var mu sync.Mutex
	var order []string
	var flakyTried bool

	gate := make(chan struct{})
	runner := runnerFunc(func(_ context.Context, req domain.VerificationRequest) (verify.Outcome, error) {
		if req.Owner.EntryID == "flaky" {
			mu.Lock()
			first := !flakyTried
			flakyTried = true
			mu.Unlock()
			if first {
				return verify.Outcome{}, dErrors.New(dErrors.CodeNetwork, "down")
			}
		} else {
			<-gate
		}
		mu.Lock()
		order = append(order, req.Owner.EntryID)
		mu.Unlock()
		return verify.Outcome{}, nil
	})

	q := New(runner, Config{MaxConcurrent: 1, RetryDelay: 50 * time.Millisecond, RetryAttempts: 2},
		WithLogger(logger.Discard()))

	// flaky fails once and waits out its retry delay.
	_, err := q.Enqueue(request(0, "flaky"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	// hold occupies the only slot; a and b line up behind it.
	_, err = q.Enqueue(request(0, "hold"))
	require.NoError(t, err)
	_, err = q.Enqueue(request(0, "a"))
	require.NoError(t, err)
	_, err = q.Enqueue(request(0, "b"))
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond) // flaky is re-admitted at the front
	close(gate)
	waitIdle(t, q)

	mu.Lock()
	defer mu.Unlock()
	// The re-admitted item runs before same-priority arrivals that were
	// already waiting.
	assert.Equal(t, []string{"hold", "flaky", "a", "b"}, order)
}

func TestQueue_SelfStopsAndRestarts(t *testing.T) {
	q := New(okRunner(0), Config{MaxConcurrent: 2}, WithLogger(logger.Discard()))

	_, err := q.Enqueue(request(0, "first"))
	require.NoError(t, err)
	waitIdle(t, q)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && q.Stats().Running {
		time.Sleep(5 * time.Millisecond)
	}
	assert.False(t, q.Stats().Running)

	// A fresh enqueue restarts the loop.
	_, err = q.Enqueue(request(0, "second"))
	require.NoError(t, err)
	waitIdle(t, q)
	assert.Equal(t, 2, q.Stats().Completed)
}

func TestQueue_EnqueueReturnsPositionAndEstimate(t *testing.T) {
	block := make(chan struct{})
	runner := runnerFunc(func(context.Context, domain.VerificationRequest) (verify.Outcome, error) {
		<-block
		return verify.Outcome{}, nil
	})

	q := New(runner, Config{MaxConcurrent: 1}, WithLogger(logger.Discard()))
	_, err := q.Enqueue(request(0, "active"))
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)

	first, err := q.Enqueue(request(0, "w1"))
	require.NoError(t, err)
	second, err := q.Enqueue(request(0, "w2"))
	require.NoError(t, err)

	assert.Equal(t, 1, first.Position)
	assert.Equal(t, 2, second.Position)
	// No history yet: 2s nominal average over one effective worker.
	assert.Equal(t, 2, first.EstimatedWaitSeconds)
	assert.Equal(t, 4, second.EstimatedWaitSeconds)

	close(block)
	waitIdle(t, q)
}

func TestQueue_StatusNotFoundAfterEviction(t *testing.T) {
	q := New(okRunner(0), Config{MaxConcurrent: 1, Retention: 20 * time.Millisecond},
		WithLogger(logger.Discard()))

	receipt, err := q.Enqueue(request(0, "short-lived"))
	require.NoError(t, err)
	waitIdle(t, q)

	// Still visible inside the retention window.
	view, err := q.Status(receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, view.Status)

	time.Sleep(50 * time.Millisecond)
	_, err = q.Status(receipt.ID)
	assert.Equal(t, dErrors.CodeNotFound, dErrors.CodeOf(err))
}

func TestQueue_ClosedRejectsAdmission(t *testing.T) {
	q := New(okRunner(0), Config{}, WithLogger(logger.Discard()))
	q.Close()
	_, err := q.Enqueue(request(0, "late"))
	assert.Equal(t, dErrors.CodeConflict, dErrors.CodeOf(err))
}
