package queue

import (
	"container/heap"
	"time"

	"kycflow/internal/domain"
	"kycflow/internal/verify"
)

// ItemStatus is the lifecycle of one queued verification.
type ItemStatus string

const (
	StatusQueued     ItemStatus = "queued"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
)

// Item wraps a VerificationRequest with scheduling state. All fields
// are owned by the queue; callers see copies via ItemView.
type item struct {
	id      string
	request domain.VerificationRequest

	status      ItemStatus
	attempts    int
	maxAttempts int
	front       bool // re-admitted after a failure, jumps the line
	seq         uint64

	enqueuedAt time.Time
	startedAt  time.Time
	finishedAt time.Time

	outcome *verify.Outcome
	lastErr string

	heapIndex int
}

// ItemView is the caller-visible snapshot of an item.
type ItemView struct {
	ID         string              `json:"id"`
	Status     ItemStatus          `json:"status"`
	Kind       domain.IdentityKind `json:"kind"`
	Priority   int                 `json:"priority"`
	Attempts   int                 `json:"attempts"`
	EnqueuedAt time.Time           `json:"enqueuedAt"`
	StartedAt  *time.Time          `json:"startedAt,omitempty"`
	FinishedAt *time.Time          `json:"finishedAt,omitempty"`
	Outcome    *verify.Outcome     `json:"outcome,omitempty"`
	Error      string              `json:"error,omitempty"`

	// Set only while the item is still queued.
	Position             int `json:"position,omitempty"`
	EstimatedWaitSeconds int `json:"estimatedWaitSeconds,omitempty"`
}

func (it *item) view() ItemView {
	v := ItemView{
		ID:         it.id,
		Status:     it.status,
		Kind:       it.request.Kind,
		Priority:   it.request.Priority,
		Attempts:   it.attempts,
		EnqueuedAt: it.enqueuedAt,
		Outcome:    it.outcome,
		Error:      it.lastErr,
	}
	if !it.startedAt.IsZero() {
		t := it.startedAt
		v.StartedAt = &t
	}
	if !it.finishedAt.IsZero() {
		t := it.finishedAt
		v.FinishedAt = &t
	}
	return v
}

// itemHeap orders by: re-admitted items first, then priority descending,
// then arrival order. The ordering is total, so equal-priority items
// keep their insertion positions.
type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.front != b.front {
		return a.front
	}
	if a.request.Priority != b.request.Priority {
		return a.request.Priority > b.request.Priority
	}
	return a.seq < b.seq
}

func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex = i
	h[j].heapIndex = j
}

func (h *itemHeap) Push(x any) {
	it := x.(*item)
	it.heapIndex = len(*h)
	*h = append(*h, it)
}

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	it.heapIndex = -1
	*h = old[:n-1]
	return it
}

var _ heap.Interface = (*itemHeap)(nil)

// rank returns how many pending items sort ahead of it.
func (h itemHeap) rank(target *item) int {
	ahead := 0
	for _, other := range h {
		if other == target {
			continue
		}
		if lessItem(other, target) {
			ahead++
		}
	}
	return ahead
}

func lessItem(a, b *item) bool {
	if a.front != b.front {
		return a.front
	}
	if a.request.Priority != b.request.Priority {
		return a.request.Priority > b.request.Priority
	}
	return a.seq < b.seq
}
