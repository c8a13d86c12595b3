package extract

import (
	"context"
	"time"

	"github.com/receiptwise/pipeline/constants"
)

// ExtractedItem is one receipt line item. It has no identity of its own;
// it lives and dies with its ExtractedReceipt.
type ExtractedItem struct {
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	LineNumber int     `json:"line_number"` // origin line index, for audit
	Confidence float32 `json:"confidence"`  // 0..1
}

// ExtractedReceipt is the output of one extraction attempt. Immutable once
// produced; ownership passes to the persistence layer on commit.
type ExtractedReceipt struct {
	StoreName    *string         `json:"store_name"`
	PurchaseDate *time.Time      `json:"purchase_date"`
	Items        []ExtractedItem `json:"items"`
	TotalAmount  *float64        `json:"total_amount"`
	Currency     string          `json:"currency"`
	Confidence   float32         `json:"confidence"`
	RawText      *string         `json:"raw_text,omitempty"` // heuristic provider only
	Reconciled   bool            `json:"reconciled"`
}

// Empty returns the zero-confidence fallback result a provider hands back
// when it cannot produce anything usable.
func Empty() ExtractedReceipt {
	return ExtractedReceipt{Currency: constants.DefaultCurrency}
}

// IsEmpty reports whether the receipt carries no extracted signal at all.
func (r ExtractedReceipt) IsEmpty() bool {
	return r.StoreName == nil && r.PurchaseDate == nil &&
		len(r.Items) == 0 && r.TotalAmount == nil
}

// Request carries the inputs a provider may use. The heuristic provider needs
// Text (running the OCR collaborator over Image when Text is absent); the
// vision provider needs only Image.
type Request struct {
	Image []byte
	Text  string
}

// Provider is the single polymorphic extraction capability. Implementations
// return Empty() rather than an error for expected "no result" cases; errors
// are reserved for conditions the orchestrator must act on (fail-fast
// permanent input problems). Retrying is never a provider concern.
type Provider interface {
	Name() string
	Extract(ctx context.Context, req Request) (ExtractedReceipt, error)
}
