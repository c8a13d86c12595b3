package heuristic

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/receiptwise/pipeline/internal/extract"
)

// priceMatch is the outcome of the shared multi-format price scan, used by
// both the item and total extractors.
type priceMatch struct {
	value  float64
	symbol bool // matched with an explicit currency symbol
	start  int  // byte offset of the price expression within the line
}

var (
	reSymbolPrice     = regexp.MustCompile(`[$€£¥]\s*(\d{1,4}(?:[.,]\d{2}))`)
	reTrailingDecimal = regexp.MustCompile(`(\d{1,4}[.,]\d{2})\s*$`)
	reSpacedCents     = regexp.MustCompile(`(\d{1,4})\s+(\d{2,3})\s*$`)
	reTrailingDigits  = regexp.MustCompile(`\b(\d{2,4})\s*$`)
)

// matchPrice tries the price patterns in priority order: currency-symbol
// prefixed decimal, bare trailing decimal, space-separated cents ("2 29" is
// 2.29), then bare trailing 2-4 digits read as cents. The first pattern
// yielding a value in (0, 10000) wins.
func matchPrice(line string) (priceMatch, bool) {
	if loc := reSymbolPrice.FindStringSubmatchIndex(line); loc != nil {
		v, err := parseDecimal(line[loc[2]:loc[3]])
		if err == nil && extract.ValidItemPrice(v) {
			return priceMatch{value: v, symbol: true, start: loc[0]}, true
		}
	}
	if loc := reTrailingDecimal.FindStringSubmatchIndex(line); loc != nil {
		v, err := parseDecimal(line[loc[2]:loc[3]])
		if err == nil && extract.ValidItemPrice(v) {
			return priceMatch{value: v, start: loc[0]}, true
		}
	}
	if loc := reSpacedCents.FindStringSubmatchIndex(line); loc != nil {
		whole, _ := strconv.Atoi(line[loc[2]:loc[3]])
		frac := line[loc[4]:loc[5]]
		f, _ := strconv.Atoi(frac)
		v := float64(whole) + float64(f)/math.Pow10(len(frac))
		v = math.Round(v*100) / 100
		if extract.ValidItemPrice(v) {
			return priceMatch{value: v, start: loc[0]}, true
		}
	}
	if loc := reTrailingDigits.FindStringSubmatchIndex(line); loc != nil {
		n, _ := strconv.Atoi(line[loc[2]:loc[3]])
		v := float64(n) / 100
		if extract.ValidItemPrice(v) {
			return priceMatch{value: v, start: loc[0]}, true
		}
	}
	return priceMatch{}, false
}

// parseDecimal reads "3.99" or "3,99" as 3.99.
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
