package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/receiptwise/pipeline/internal/extract"
)

// ReceiptRecord is a committed extraction as read back from the store.
type ReceiptRecord struct {
	JobID     uuid.UUID
	Receipt   extract.ExtractedReceipt
	CreatedAt time.Time
}
