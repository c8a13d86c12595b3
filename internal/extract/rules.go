package extract

import "time"

// Shared data invariants, enforced by both providers so a malformed vision
// response and a noisy OCR line land on the same bounds.
const (
	MaxItemPrice = 10000.0 // exclusive upper bound
	MaxQuantity  = 100     // parsed quantities at or above this reset to 1
	MinNameLen   = 2       // after cleaning
)

// ValidItemPrice reports whether p lies in (0, MaxItemPrice).
func ValidItemPrice(p float64) bool {
	return p > 0 && p < MaxItemPrice
}

// ClampQuantity applies the quantity rule: default 1, reset to 1 when the
// parsed value is out of the plausible [1, MaxQuantity) range.
func ClampQuantity(n int) int {
	if n < 1 || n >= MaxQuantity {
		return 1
	}
	return n
}

// WithinDateWindow reports whether d is acceptable as a purchase date:
// not after today, and not before exactly one year ago (inclusive on both
// ends). Comparison happens at date granularity in UTC, so a date exactly
// one year old passes no matter the time of day, a date 366 days in the
// past fails, and tomorrow fails.
func WithinDateWindow(d, now time.Time) bool {
	u := now.UTC()
	today := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	if day.After(today) {
		return false
	}
	return !day.Before(today.AddDate(-1, 0, 0))
}

// ClampConfidence bounds c to [0, 1].
func ClampConfidence(c float32) float32 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
