// Package repository persists receipt jobs and their extraction results.
// The one hard requirement is atomicity of CommitResult: the receipt, its
// items and the COMPLETED status land in a single transaction, so a job can
// never be Completed without its rows or leave orphaned items behind.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/receiptwise/pipeline/internal/entity"
	"github.com/receiptwise/pipeline/internal/extract"
)

type Store interface {
	// CreateJob upserts the Pending row for a submission. Resubmitting a
	// FAILED id resets attempts and lastError; the orchestrator guarantees
	// it is never called for a live or completed job.
	CreateJob(ctx context.Context, job *entity.ReceiptJob) error

	// GetJob returns common.ErrNotFound (wrapped) for unknown ids.
	GetJob(ctx context.Context, id uuid.UUID) (*entity.ReceiptJob, error)

	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// MarkPending records a retryable failure: Processing -> Pending with the
	// attempt count and last error.
	MarkPending(ctx context.Context, id uuid.UUID, attempts int, lastError string) error

	// MarkFailed records terminal failure.
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, lastError string) error

	// CommitResult writes the receipt, its items, and status COMPLETED
	// all-or-nothing. On error the job row is untouched and the job stays
	// eligible for retry.
	CommitResult(ctx context.Context, id uuid.UUID, rec extract.ExtractedReceipt) error

	// ListCompleted returns all committed extractions, oldest first.
	ListCompleted(ctx context.Context) ([]*entity.ReceiptRecord, error)

	// ListNonTerminal returns jobs still marked PENDING or PROCESSING, oldest
	// first. The orchestrator re-enqueues them on startup, since rows can
	// outlive the in-process queue across a restart.
	ListNonTerminal(ctx context.Context) ([]*entity.ReceiptJob, error)

	Close() error
}
