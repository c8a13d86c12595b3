// Package async provides the in-process job queue: FIFO delivery with
// idempotent keyed enqueue and per-id lease semantics, so no two workers ever
// hold the same job and a duplicate submission is a no-op.
package async

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/receiptwise/pipeline/internal/common"
	"github.com/receiptwise/pipeline/internal/entity"
)

type Queue struct {
	logger *slog.Logger
	ch     chan *entity.ReceiptJob
	done   chan struct{}

	mu     sync.Mutex
	queued map[uuid.UUID]struct{} // enqueued, not yet delivered
	leased map[uuid.UUID]struct{} // delivered, held by a worker
	closed bool
}

func NewQueue(size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		logger: logger,
		ch:     make(chan *entity.ReceiptJob, size),
		done:   make(chan struct{}),
		queued: make(map[uuid.UUID]struct{}),
		leased: make(map[uuid.UUID]struct{}),
	}
}

// Enqueue adds the job unless its id is already queued or leased, in which
// case it is a silent no-op. A full channel applies backpressure to the
// caller rather than dropping. The job channel is never closed, so a sender
// blocked on a full queue can never hit a closed channel; Close unblocks it
// through done instead.
func (q *Queue) Enqueue(job *entity.ReceiptJob) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.ID)
		return common.ErrQueueClosed
	}
	if _, ok := q.queued[job.ID]; ok {
		q.mu.Unlock()
		q.logger.Debug("enqueue deduplicated: already queued", "job_id", job.ID)
		return nil
	}
	if _, ok := q.leased[job.ID]; ok {
		q.mu.Unlock()
		q.logger.Debug("enqueue deduplicated: currently leased", "job_id", job.ID)
		return nil
	}
	q.queued[job.ID] = struct{}{}
	q.mu.Unlock()

	select {
	case q.ch <- job:
		return nil
	default:
	}
	q.logger.Warn("queue full, applying backpressure", "job_id", job.ID)
	select {
	case q.ch <- job:
		return nil
	case <-q.done:
		q.mu.Lock()
		delete(q.queued, job.ID)
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "job_id", job.ID)
		return common.ErrQueueClosed
	}
}

// Dequeue blocks until a job is available, the context ends, or the queue
// closes and drains. The returned job is leased to the caller; no other
// worker can receive the same id until Release.
func (q *Queue) Dequeue(ctx context.Context) (*entity.ReceiptJob, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case job := <-q.ch:
		return q.lease(job), nil
	case <-q.done:
		// closed: hand out whatever is still buffered before reporting it
		select {
		case job := <-q.ch:
			return q.lease(job), nil
		default:
			return nil, common.ErrQueueClosed
		}
	}
}

// Release returns the lease for id, making the id eligible for enqueue again.
func (q *Queue) Release(id uuid.UUID) {
	q.mu.Lock()
	delete(q.leased, id)
	q.mu.Unlock()
}

// Close stops accepting new jobs and unblocks any sender waiting on a full
// channel. Already-buffered jobs still drain through Dequeue.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

func (q *Queue) lease(job *entity.ReceiptJob) *entity.ReceiptJob {
	q.mu.Lock()
	delete(q.queued, job.ID)
	q.leased[job.ID] = struct{}{}
	q.mu.Unlock()
	return job
}
