package domain

import (
	"fmt"
	"math"
	"time"
)

// JobStatus tracks a bulk verification run. Terminal states are final.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobPaused    JobStatus = "paused"
	JobCompleted JobStatus = "completed"
)

// BulkJob is one verification run across a list. Mutated only by the owning
// controller; readers get snapshots.
type BulkJob struct {
	ID          string
	ListID      string
	UserID      string
	Total       int
	Processed   int
	Verified    int
	Failed      int
	Skipped     int
	Status      JobStatus
	StartedAt   time.Time
	PausedAt    time.Time
	CompletedAt time.Time
}

// BulkJobID derives a job identity from the list and start time so concurrent
// runs on different lists never collide.
func BulkJobID(listID string, startedAt time.Time) string {
	return fmt.Sprintf("%s-%d", listID, startedAt.UnixMilli())
}

// Progress is the caller-facing view of a bulk job.
type Progress struct {
	JobID     string    `json:"jobId"`
	Processed int       `json:"processed"`
	Verified  int       `json:"verified"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Total     int       `json:"total"`
	Percent   int       `json:"percent"`
	Status    JobStatus `json:"status"`
}

// ProgressOf computes the snapshot view, rounding percent half-up.
func ProgressOf(job BulkJob) Progress {
	percent := 0
	if job.Total > 0 {
		percent = int(math.Round(float64(job.Processed) / float64(job.Total) * 100))
	}
	return Progress{
		JobID:     job.ID,
		Processed: job.Processed,
		Verified:  job.Verified,
		Failed:    job.Failed,
		Skipped:   job.Skipped,
		Total:     job.Total,
		Percent:   percent,
		Status:    job.Status,
	}
}
