package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/receiptwise/pipeline/constants"
)

// ReceiptJob is the orchestration unit. ID doubles as the idempotency key:
// it equals the receipt identifier assigned at upload time, so a retried
// upload enqueues the same job id and submission stays a no-op.
type ReceiptJob struct {
	ID        uuid.UUID
	ImageRef  string // opaque handle resolved by the image store
	Status    constants.JobStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewReceiptJob returns a Pending job for the given receipt id and image handle.
func NewReceiptJob(id uuid.UUID, imageRef string) *ReceiptJob {
	now := time.Now().UTC()
	return &ReceiptJob{
		ID:        id,
		ImageRef:  imageRef,
		Status:    constants.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
