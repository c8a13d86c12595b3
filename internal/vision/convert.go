package vision

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/receiptwise/pipeline/constants"
	"github.com/receiptwise/pipeline/internal/extract"
)

type wireReceipt struct {
	StoreName  *string    `json:"storeName"`
	Date       *string    `json:"date"`
	Items      []wireItem `json:"items"`
	Total      *float64   `json:"total"`
	Currency   string     `json:"currency"`
	Confidence float32    `json:"confidence"`
}

type wireItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// decodeReceipt turns a schema-valid response into an ExtractedReceipt,
// applying the same data invariants the heuristic path enforces: date
// validity window, price bounds, quantity reset, minimum name length.
func decodeReceipt(data []byte, now time.Time) (extract.ExtractedReceipt, error) {
	var w wireReceipt
	if err := json.Unmarshal(data, &w); err != nil {
		return extract.Empty(), fmt.Errorf("unmarshal fields: %w", err)
	}

	rec := extract.Empty()
	if w.StoreName != nil && strings.TrimSpace(*w.StoreName) != "" {
		name := strings.TrimSpace(*w.StoreName)
		rec.StoreName = &name
	}
	if w.Date != nil {
		if dt, err := time.ParseInLocation("2006-01-02", *w.Date, time.UTC); err == nil && extract.WithinDateWindow(dt, now) {
			rec.PurchaseDate = &dt
		}
	}
	if w.Total != nil && extract.ValidItemPrice(*w.Total) {
		total := *w.Total
		rec.TotalAmount = &total
	}
	if len(w.Currency) == 3 {
		rec.Currency = strings.ToUpper(w.Currency)
	} else {
		rec.Currency = constants.DefaultCurrency
	}
	rec.Confidence = extract.ClampConfidence(w.Confidence)

	for i, it := range w.Items {
		name := strings.TrimSpace(it.Name)
		if utf8.RuneCountInString(name) < extract.MinNameLen || !extract.ValidItemPrice(it.Price) {
			continue
		}
		rec.Items = append(rec.Items, extract.ExtractedItem{
			Name:       name,
			Price:      it.Price,
			Quantity:   extract.ClampQuantity(it.Quantity),
			LineNumber: i, // array position; the model sees no line numbers
			Confidence: rec.Confidence,
		})
	}
	return rec, nil
}
