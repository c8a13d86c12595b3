package ocrtext

import (
	"regexp"
	"strings"
)

var (
	reDateish = regexp.MustCompile(`\b\d{1,4}[/.-]\d{1,2}[/.-]\d{1,4}\b`)
	reCurr    = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|jpy)\b|[$£€¥]`)
	reAmount  = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
)

// Confidence is a naive quality estimate for recognized text: receipts carry
// date-ish, currency-ish and amount-ish artifacts, each worth a boost.
func Confidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if reDateish.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
