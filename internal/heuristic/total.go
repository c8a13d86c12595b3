package heuristic

import "strings"

// TotalExtractor finds the receipt total by scanning from the bottom up,
// where totals live, for an indicator keyword plus a parseable price.
type TotalExtractor struct{}

func NewTotalExtractor() *TotalExtractor {
	return &TotalExtractor{}
}

var totalKeywords = []string{
	"grand total", "amount due", "balance due", "total due", "amount payable",
	"total", "summe", "gesamt", "totale", "montant", "importe",
}

// subtotal lines share the "total" keyword but are never the answer
var subtotalMarkers = []string{
	"subtotal", "sub-total", "sub total", "sous-total", "zwischensumme",
}

// Detect returns the first valid total found scanning bottom-up, or nil when
// no indicator line yields a price in range.
func (e *TotalExtractor) Detect(text string) *float64 {
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		l := strings.ToLower(line)
		if containsAny(l, subtotalMarkers) || !containsAny(l, totalKeywords) {
			continue
		}
		if m, ok := matchPrice(line); ok {
			v := m.value
			return &v
		}
	}
	return nil
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
