// Package bulk drives whole lists of entries through verification in
// parallel batches with pause, resume, and progress reporting.
package bulk

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kycflow/internal/audit"
	"kycflow/internal/domain"
	"kycflow/internal/notify"
	"kycflow/internal/storage"
	"kycflow/internal/verify"
	dErrors "kycflow/pkg/domain-errors"
)

// Runner executes one verification. Satisfied by verify.Service.
type Runner interface {
	Run(ctx context.Context, req domain.VerificationRequest) (verify.Outcome, error)
}

// Decrypter recovers the plaintext identifier for duplicate detection.
// Satisfied by crypto.Vault.
type Decrypter interface {
	Decrypt(field domain.EncryptedField) (string, error)
}

type Controller struct {
	runner    Runner
	entries   storage.EntryStore
	jobs      storage.JobStore
	trail     *audit.Trail
	notifier  notify.Notifier
	decrypter Decrypter
	logger    *slog.Logger
	batchSize int

	mu     sync.Mutex
	active map[string]*jobRun
}

// jobRun is the in-memory control block for a running job. The pause
// flag is consulted at batch boundaries only; in-flight items in the
// current batch always complete.
type jobRun struct {
	mu     sync.Mutex
	paused bool
}

func (r *jobRun) pause() {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
}

func (r *jobRun) isPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paused
}

type Option func(*Controller)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

// WithDecrypter enables the pre-flight duplicate check: entries whose
// identifier already appeared earlier in the list are skipped instead
// of burning a registry call.
func WithDecrypter(d Decrypter) Option {
	return func(c *Controller) { c.decrypter = d }
}

func WithBatchSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func NewController(runner Runner, entries storage.EntryStore, jobs storage.JobStore, trail *audit.Trail, opts ...Option) *Controller {
	c := &Controller{
		runner:    runner,
		entries:   entries,
		jobs:      jobs,
		trail:     trail,
		notifier:  notify.Discard{},
		logger:    slog.Default(),
		batchSize: 10,
		active:    make(map[string]*jobRun),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Start creates a job for every entry in the list and begins processing
// in the background. The returned job carries the derived job ID.
func (c *Controller) Start(ctx context.Context, listID, userID string) (domain.BulkJob, error) {
	entries, err := c.entries.ListByList(ctx, listID)
	if err != nil {
		return domain.BulkJob{}, err
	}
	if len(entries) == 0 {
		return domain.BulkJob{}, dErrors.New(dErrors.CodeNotFound, "list has no entries")
	}

	now := time.Now()
	job := domain.BulkJob{
		ID:        domain.BulkJobID(listID, now),
		ListID:    listID,
		UserID:    userID,
		Total:     len(entries),
		Status:    domain.JobRunning,
		StartedAt: now,
	}
	if err := c.jobs.Save(ctx, job); err != nil {
		return domain.BulkJob{}, err
	}

	run := &jobRun{}
	c.mu.Lock()
	c.active[job.ID] = run
	c.mu.Unlock()

	c.trail.BulkOperation(ctx, job.ID, listID, "started", userID)
	go c.process(job.ID, run)
	return job, nil
}

// Pause requests a stop at the next batch boundary.
func (c *Controller) Pause(ctx context.Context, jobID string) error {
	c.mu.Lock()
	run, ok := c.active[jobID]
	c.mu.Unlock()
	if !ok {
		return dErrors.New(dErrors.CodeNotFound, "job is not running")
	}
	run.pause()

	job, err := c.jobs.FindByID(ctx, jobID)
	if err == nil {
		c.trail.BulkOperation(ctx, jobID, job.ListID, "pause_requested", job.UserID)
	}
	return nil
}

// Resume continues a paused job from its next unprocessed entry.
// Entries verified in the meantime are skipped, not re-verified.
func (c *Controller) Resume(ctx context.Context, jobID string) error {
	job, err := c.jobs.FindByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobPaused {
		return dErrors.Newf(dErrors.CodeConflict, "job is %s, only paused jobs can resume", job.Status)
	}

	job.Status = domain.JobRunning
	job.PausedAt = time.Time{}
	if err := c.jobs.Save(ctx, job); err != nil {
		return err
	}

	run := &jobRun{}
	c.mu.Lock()
	c.active[jobID] = run
	c.mu.Unlock()

	c.trail.BulkOperation(ctx, jobID, job.ListID, "resumed", job.UserID)
	go c.process(jobID, run)
	return nil
}

// Progress returns the current counters for a job.
func (c *Controller) Progress(ctx context.Context, jobID string) (domain.Progress, error) {
	job, err := c.jobs.FindByID(ctx, jobID)
	if err != nil {
		return domain.Progress{}, err
	}
	return domain.ProgressOf(job), nil
}

// Wait blocks until the job leaves the running state or the context
// expires. Intended for tests and synchronous callers.
func (c *Controller) Wait(ctx context.Context, jobID string) (domain.BulkJob, error) {
	for {
		job, err := c.jobs.FindByID(ctx, jobID)
		if err != nil {
			return domain.BulkJob{}, err
		}
		if job.Status != domain.JobRunning {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "wait for bulk job")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// process walks the list in fixed-size batches, fanning each batch out
// and settling the job record at every boundary.
func (c *Controller) process(jobID string, run *jobRun) {
	ctx := context.Background()

	job, err := c.jobs.FindByID(ctx, jobID)
	if err != nil {
		c.logger.Error("bulk job lookup failed", "job_id", jobID, "error", err)
		return
	}
	entries, err := c.entries.ListByList(ctx, job.ListID)
	if err != nil {
		c.logger.Error("bulk entry listing failed", "job_id", jobID, "error", err)
		return
	}
	dupes := c.findDuplicates(entries)

	for start := job.Processed; start < len(entries); start += c.batchSize {
		if run.isPaused() {
			job.Status = domain.JobPaused
			job.PausedAt = time.Now()
			c.saveJob(ctx, job)
			c.detach(jobID)
			c.trail.BulkOperation(ctx, jobID, job.ListID, "paused", job.UserID)
			c.logger.Info("bulk job paused", "job_id", jobID, "processed", job.Processed)
			return
		}

		end := start + c.batchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for i, entry := range batch {
			if entry.Status == domain.EntryVerified {
				mu.Lock()
				job.Skipped++
				mu.Unlock()
				continue
			}
			if dup, ok := dupes[start+i]; ok {
				mu.Lock()
				job.Skipped++
				mu.Unlock()
				c.trail.DuplicateSkipped(ctx, entry.Kind, dup.identifier, domain.OwnerRef{
					UserID:  job.UserID,
					ListID:  job.ListID,
					EntryID: entry.ID,
				}, dup.originalEntryID)
				continue
			}
			g.Go(func() error {
				outcome, err := c.runner.Run(gctx, c.requestFor(job, entry))
				mu.Lock()
				defer mu.Unlock()
				if err == nil && outcome.Matched {
					job.Verified++
				} else {
					job.Failed++
				}
				return nil
			})
		}
		_ = g.Wait()

		job.Processed = end
		c.saveJob(ctx, job)
	}

	job.Status = domain.JobCompleted
	job.CompletedAt = time.Now()
	c.saveJob(ctx, job)
	c.detach(jobID)
	c.trail.BulkOperation(ctx, jobID, job.ListID, "completed", job.UserID)
	c.notifier.Notify(ctx, job.UserID, "Bulk verification completed",
		"Your bulk verification for list "+job.ListID+" has finished.")
	c.logger.Info("bulk job completed",
		"job_id", jobID, "verified", job.Verified, "failed", job.Failed, "skipped", job.Skipped)
}

// duplicate ties a repeated entry back to the first occurrence of its
// identifier.
type duplicate struct {
	identifier      string
	originalEntryID string
}

// findDuplicates maps each entry position whose identifier already
// appeared earlier in the list to that first occurrence. Entries that
// fail to decrypt are treated as unique; a crypto fault must not block
// the whole list.
func (c *Controller) findDuplicates(entries []domain.Entry) map[int]duplicate {
	if c.decrypter == nil {
		return nil
	}
	dupes := make(map[int]duplicate)
	seen := make(map[string]string)
	for i, entry := range entries {
		plain, err := c.decrypter.Decrypt(entry.IdentityNo)
		if err != nil {
			continue
		}
		key := string(entry.Kind) + ":" + plain
		if origID, ok := seen[key]; ok {
			dupes[i] = duplicate{identifier: plain, originalEntryID: origID}
			continue
		}
		seen[key] = entry.ID
	}
	return dupes
}

func (c *Controller) requestFor(job domain.BulkJob, entry domain.Entry) domain.VerificationRequest {
	return domain.VerificationRequest{
		Kind: entry.Kind,
		Owner: domain.OwnerRef{
			UserID:  job.UserID,
			ListID:  job.ListID,
			EntryID: entry.ID,
		},
		IdentityNo:  entry.IdentityNo,
		Record:      entry.Record,
		MaxAttempts: 1,
	}
}

func (c *Controller) saveJob(ctx context.Context, job domain.BulkJob) {
	if err := c.jobs.Save(ctx, job); err != nil {
		c.logger.Error("bulk job save failed", "job_id", job.ID, "error", err)
	}
}

func (c *Controller) detach(jobID string) {
	c.mu.Lock()
	delete(c.active, jobID)
	c.mu.Unlock()
}
