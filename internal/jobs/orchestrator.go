// Package jobs runs the extraction pipeline: a worker pool pulls submitted
// receipt jobs off the queue, runs the configured provider, reconciles the
// totals, and commits the result. Transient failures are retried with
// exponential backoff up to a fixed attempt budget.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/receiptwise/pipeline/constants"
	"github.com/receiptwise/pipeline/internal/async"
	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/entity"
	"github.com/receiptwise/pipeline/internal/extract"
	"github.com/receiptwise/pipeline/internal/repository"
	"github.com/receiptwise/pipeline/internal/storage"
)

type Config struct {
	Concurrency int
	QueueSize   int
	MaxAttempts int
	JobTimeout  time.Duration
	RetryBase   time.Duration
	Tolerance   float64
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 45 * time.Second
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.Tolerance <= 0 {
		c.Tolerance = extract.DefaultTolerance
	}
}

type Orchestrator struct {
	cfg      Config
	queue    *async.Queue
	store    repository.Store
	provider extract.Provider
	images   storage.ImageStore
	logger   *slog.Logger

	wg      sync.WaitGroup
	started bool
}

func NewOrchestrator(cfg Config, store repository.Store, provider extract.Provider, images storage.ImageStore, logger *slog.Logger) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		queue:    async.NewQueue(cfg.QueueSize, logger),
		store:    store,
		provider: provider,
		images:   images,
		logger:   logger,
	}
}

// Start launches the worker pool and re-enqueues jobs the store still holds
// in a non-terminal status. Persisted jobs outlive the in-process queue, so a
// restart leaves PENDING rows without a timer and PROCESSING rows without a
// worker; both would be stranded otherwise, since Submit treats them as live.
// Workers exit when the context ends or the queue is closed and drained.
func (o *Orchestrator) Start(ctx context.Context) {
	if o.started {
		return
	}
	o.started = true
	o.logger.Info("orchestrator.start", "concurrency", o.cfg.Concurrency, "max_attempts", o.cfg.MaxAttempts)
	for i := 0; i < o.cfg.Concurrency; i++ {
		o.wg.Add(1)
		go o.worker(ctx, i)
	}
	// Workers are already draining, so recovery can block on a full queue
	// without wedging startup.
	o.recoverStranded(ctx)
}

func (o *Orchestrator) recoverStranded(ctx context.Context) {
	stranded, err := o.store.ListNonTerminal(ctx)
	if err != nil {
		o.logger.Error("orchestrator.recover.failed", "error", err)
		return
	}
	recovered := 0
	for _, job := range stranded {
		if job.Status == constants.JobStatusProcessing {
			// the attempt died with the previous process; it does not count
			// against the budget
			if err := o.store.MarkPending(ctx, job.ID, job.Attempts, job.LastError); err != nil {
				o.logger.Error("orchestrator.recover.mark_pending.failed", "job_id", job.ID, "error", err)
				continue
			}
			job.Status = constants.JobStatusPending
		}
		if err := o.queue.Enqueue(job); err != nil {
			o.logger.Warn("orchestrator.recover.enqueue.failed", "job_id", job.ID, "error", err)
			continue
		}
		recovered++
	}
	if recovered > 0 {
		o.logger.Info("orchestrator.recovered", "jobs", recovered)
	}
}

// Submit registers a job for the given receipt id and image reference.
// Submitting an id that is already pending, processing, or completed is a
// no-op. A failed id is resubmitted from scratch with a fresh attempt budget.
func (o *Orchestrator) Submit(ctx context.Context, id uuid.UUID, imageRef string) error {
	existing, err := o.store.GetJob(ctx, id)
	switch {
	case err == nil:
		if existing.Status != constants.JobStatusFailed {
			o.logger.Debug("submit.duplicate", "job_id", id, "status", existing.Status)
			return nil
		}
		o.logger.Info("submit.resubmit", "job_id", id, "previous_error", existing.LastError)
	case common.IsNotFound(err):
		// first submission
	default:
		return fmt.Errorf("submit %s: %w", id, err)
	}

	job := entity.NewReceiptJob(id, imageRef)
	if err := o.store.CreateJob(ctx, job); err != nil {
		return fmt.Errorf("submit %s: %w", id, err)
	}
	if err := o.queue.Enqueue(job); err != nil {
		return fmt.Errorf("submit %s: %w", id, err)
	}
	o.logger.Info("submit.accepted", "job_id", id, "image_ref", imageRef)
	return nil
}

// Shutdown closes the queue and waits for in-flight jobs to drain, up to the
// context deadline.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.logger.Info("orchestrator.shutdown")
	o.queue.Close()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		o.logger.Info("orchestrator.drained")
		return nil
	case <-ctx.Done():
		o.logger.Warn("orchestrator.shutdown.timeout")
		return ctx.Err()
	}
}

func (o *Orchestrator) worker(ctx context.Context, n int) {
	defer o.wg.Done()
	log := o.logger.With("worker", n)
	for {
		job, err := o.queue.Dequeue(ctx)
		if err != nil {
			log.Debug("worker.exit", "reason", err)
			return
		}
		delay, retry := o.process(ctx, job)
		// The lease must be returned before the retry is scheduled, or a
		// short backoff could be deduplicated against our own hold.
		o.queue.Release(job.ID)
		if retry {
			o.scheduleRetry(job, delay)
		}
	}
}

// process runs one attempt. It returns the backoff delay and whether the job
// should be re-enqueued.
func (o *Orchestrator) process(ctx context.Context, job *entity.ReceiptJob) (time.Duration, bool) {
	log := o.logger.With("job_id", job.ID, "attempt", job.Attempts+1)
	started := time.Now()

	if err := o.store.MarkProcessing(ctx, job.ID); err != nil {
		log.Error("job.mark_processing.failed", "error", err)
		return o.failure(ctx, job, err)
	}

	jobCtx, cancel := context.WithTimeout(ctx, o.cfg.JobTimeout)
	defer cancel()

	rec, err := o.runExtraction(jobCtx, job)
	if err != nil {
		log.Warn("job.attempt.failed", "error", err)
		return o.failure(ctx, job, err)
	}

	rec.Reconciled = extract.Reconcile(rec.TotalAmount, rec.Items, o.cfg.Tolerance)

	if err := o.store.CommitResult(ctx, job.ID, rec); err != nil {
		log.Error("job.commit.failed", "error", err)
		return o.failure(ctx, job, err)
	}
	log.Info("job.completed",
		"provider", o.provider.Name(),
		"items", len(rec.Items),
		"reconciled", rec.Reconciled,
		"confidence", rec.Confidence,
		"duration_ms", time.Since(started).Milliseconds())
	return 0, false
}

func (o *Orchestrator) runExtraction(ctx context.Context, job *entity.ReceiptJob) (extract.ExtractedReceipt, error) {
	image, err := o.images.Fetch(ctx, job.ImageRef)
	if err != nil {
		return extract.Empty(), fmt.Errorf("fetch image: %w", err)
	}
	rec, err := o.provider.Extract(ctx, extract.Request{Image: image})
	if err != nil {
		return extract.Empty(), fmt.Errorf("provider %s: %w", o.provider.Name(), err)
	}
	if rec.IsEmpty() {
		return extract.Empty(), fmt.Errorf("provider %s: %w", o.provider.Name(), common.ErrNoResult)
	}
	return rec, nil
}

// failure advances the attempt counter and decides between retry and
// terminal failure. Permanent errors and an exhausted budget fail the job.
func (o *Orchestrator) failure(ctx context.Context, job *entity.ReceiptJob, cause error) (time.Duration, bool) {
	job.Attempts++
	job.LastError = cause.Error()

	if common.IsPermanent(cause) || job.Attempts >= o.cfg.MaxAttempts {
		if err := o.store.MarkFailed(ctx, job.ID, job.Attempts, job.LastError); err != nil {
			o.logger.Error("job.mark_failed.failed", "job_id", job.ID, "error", err)
		}
		o.logger.Warn("job.failed",
			"job_id", job.ID,
			"attempts", job.Attempts,
			"permanent", common.IsPermanent(cause),
			"error", job.LastError)
		return 0, false
	}

	if err := o.store.MarkPending(ctx, job.ID, job.Attempts, job.LastError); err != nil {
		o.logger.Error("job.mark_pending.failed", "job_id", job.ID, "error", err)
		return 0, false
	}
	delay := o.cfg.RetryBase << uint(job.Attempts-1)
	o.logger.Info("job.retry_scheduled", "job_id", job.ID, "attempts", job.Attempts, "delay", delay)
	return delay, true
}

func (o *Orchestrator) scheduleRetry(job *entity.ReceiptJob, delay time.Duration) {
	time.AfterFunc(delay, func() {
		if err := o.queue.Enqueue(job); err != nil {
			o.logger.Warn("job.retry_dropped", "job_id", job.ID, "error", err)
		}
	})
}
