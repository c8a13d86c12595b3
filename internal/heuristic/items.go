package heuristic

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/receiptwise/pipeline/internal/extract"
)

// ItemExtractor turns receipt body lines into line items in one ordered pass.
type ItemExtractor struct{}

func NewItemExtractor() *ItemExtractor {
	return &ItemExtractor{}
}

// Lines matching any of these are never items: totals, taxes, payment and
// header/footer boilerplate, in the locales receipts commonly show up in.
var skipKeywords = []string{
	"total", "subtotal", "sub-total", "sub total",
	"tax", "vat", "iva", "mwst", "tva", "gst", "hst",
	"change", "cash", "card", "credit", "debit",
	"visa", "mastercard", "amex", "discover",
	"balance", "amount due", "tender", "payment", "paid", "approval",
	"thank", "welcome", "receipt", "invoice",
	"cashier", "clerk", "register", "terminal",
	"store #", "store no", "tel:", "phone", "fax", "www.", ".com",
	"date:", "time:", "order #", "transaction",
	"loyalty", "rewards", "points", "member", "coupon", "savings", "refund",
	"items sold", "item count",
}

var (
	reSeparatorLine = regexp.MustCompile(`^[\s\-=*_.#~]+$`)

	reQtyAt    = regexp.MustCompile(`(?i)\b(\d{1,3})\s*[@x]\s`)
	reQtyWord  = regexp.MustCompile(`(?i)\b(?:qty|quantity|menge|cant(?:\.|idad)?)\s*[:.]?\s*(\d{1,3})\b`)
	reQtyTimes = regexp.MustCompile(`(?i)\bx\s*(\d{1,3})\b`)

	reQtyPrefix     = regexp.MustCompile(`(?i)^\s*\d{1,3}\s*[@x]\s+`)
	reSKUPrefix     = regexp.MustCompile(`^\s*#?\d{4,}\s+`)
	reArticlePrefix = regexp.MustCompile(`(?i)^\s*(?:the|a|an)\s+`)

	// anything outside the alphanumeric/currency/punctuation set a clean
	// receipt line is expected to use
	reUnexpectedChar = regexp.MustCompile(`[^a-zA-Z0-9\s$€£¥.,:;@#%/&'()\-*+"!?=_]`)
)

// Detect extracts line items ordered by line number. One pass per call; lines
// that yield no valid price or too short a name are dropped, never reported
// as errors.
func (e *ItemExtractor) Detect(text string) []extract.ExtractedItem {
	var items []extract.ExtractedItem
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || reSeparatorLine.MatchString(line) || skippable(line) {
			continue
		}

		m, ok := matchPrice(line)
		if !ok {
			continue
		}

		name := cleanItemName(line[:m.start])
		if utf8.RuneCountInString(name) < extract.MinNameLen {
			continue
		}

		items = append(items, extract.ExtractedItem{
			Name:       name,
			Price:      m.value,
			Quantity:   detectQuantity(line),
			LineNumber: i,
			Confidence: itemConfidence(line, name, m),
		})
	}
	return items
}

func skippable(line string) bool {
	l := strings.ToLower(line)
	for _, kw := range skipKeywords {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

// detectQuantity scans the whole line for "N @", "N x", "Qty: N" and the
// localized variants, defaulting to 1 when absent or out of [1,100).
func detectQuantity(line string) int {
	for _, re := range []*regexp.Regexp{reQtyAt, reQtyWord, reQtyTimes} {
		if m := re.FindStringSubmatch(line); m != nil {
			n := atoi(m[1])
			return extract.ClampQuantity(n)
		}
	}
	return 1
}

// cleanItemName strips quantity, SKU-number and article prefixes from the
// text preceding the price span and collapses whitespace.
func cleanItemName(s string) string {
	s = reQtyPrefix.ReplaceAllString(s, "")
	s = reSKUPrefix.ReplaceAllString(s, "")
	s = reArticlePrefix.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t.-:*#")
	return strings.Join(strings.Fields(s), " ")
}

// itemConfidence scores a line: 0.5 base, +0.2 explicit currency symbol,
// +0.1 name length in [5,50], +0.1 plausible price, -0.1 unexpected
// characters, clamped to [0,1].
func itemConfidence(line, name string, m priceMatch) float32 {
	conf := float32(0.5)
	if m.symbol {
		conf += 0.2
	}
	if n := utf8.RuneCountInString(name); n >= 5 && n <= 50 {
		conf += 0.1
	}
	if m.value >= 0.5 && m.value <= 500 {
		conf += 0.1
	}
	if reUnexpectedChar.MatchString(line) {
		conf -= 0.1
	}
	return extract.ClampConfidence(conf)
}
