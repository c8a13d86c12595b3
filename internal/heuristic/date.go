package heuristic

import (
	"regexp"
	"strings"
	"time"

	"github.com/receiptwise/pipeline/internal/extract"
)

// DateExtractor pulls a purchase date out of recognized text. Lines carrying a
// date-indicator keyword are scanned before the whole-text fallback, and a
// candidate is accepted only inside the validity window: not in the future and
// not before exactly one year ago (inclusive).
type DateExtractor struct {
	Now func() time.Time // injectable clock; time.Now by default
}

func NewDateExtractor() *DateExtractor {
	return &DateExtractor{Now: time.Now}
}

var dateIndicators = []string{
	"purchase date", "transaction date", "date of purchase", "date:",
	"fecha", "datum", "data:",
}

var (
	reISODate   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	reYMDSlash  = regexp.MustCompile(`\b(\d{4})/(\d{1,2})/(\d{1,2})\b`)
	reNumeric   = regexp.MustCompile(`\b(\d{1,2})([/.\-])(\d{1,2})[/.\-](\d{2,4})\b`)
	reMonthName = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})\b`)
	reDayMonth  = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\.?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?,?\s+(\d{4})\b`)
)

var monthAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Detect returns the first date candidate that falls inside the validity
// window, or nil. Indicator-adjacent lines win over the whole-text scan.
func (d *DateExtractor) Detect(text string) *time.Time {
	now := d.Now()
	lines := strings.Split(text, "\n")

	var indicator, rest []string
	for _, l := range lines {
		ll := strings.ToLower(l)
		matched := false
		for _, kw := range dateIndicators {
			if strings.Contains(ll, kw) {
				matched = true
				break
			}
		}
		if matched {
			indicator = append(indicator, l)
		} else {
			rest = append(rest, l)
		}
	}

	for _, l := range append(indicator, rest...) {
		if dt, ok := parseDateLine(l, now); ok {
			return &dt
		}
	}
	return nil
}

// parseDateLine tries the supported formats in priority order and returns the
// first reading that is a real calendar date inside the window.
func parseDateLine(line string, now time.Time) (time.Time, bool) {
	if m := reISODate.FindStringSubmatch(line); m != nil {
		if dt, ok := calendarDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), now); ok {
			return dt, true
		}
	}
	if m := reYMDSlash.FindStringSubmatch(line); m != nil {
		if dt, ok := calendarDate(atoi(m[1]), atoi(m[2]), atoi(m[3]), now); ok {
			return dt, true
		}
	}
	if m := reNumeric.FindStringSubmatch(line); m != nil {
		a, sep, b, year := atoi(m[1]), m[2], atoi(m[3]), normalizeYear(atoi(m[4]))
		// dot separator is overwhelmingly day-first; slash and dash lean
		// month-first on US receipts. Try the other order when the first
		// reading is impossible or outside the window.
		orders := [][2]int{{a, b}, {b, a}} // {month, day}
		if sep == "." {
			orders = [][2]int{{b, a}, {a, b}}
		}
		for _, o := range orders {
			if dt, ok := calendarDate(year, o[0], o[1], now); ok {
				return dt, true
			}
		}
	}
	if m := reMonthName.FindStringSubmatch(line); m != nil {
		if mon, ok := monthAbbrev[strings.ToLower(m[1])]; ok {
			if dt, ok := calendarDate(atoi(m[3]), int(mon), atoi(m[2]), now); ok {
				return dt, true
			}
		}
	}
	if m := reDayMonth.FindStringSubmatch(line); m != nil {
		if mon, ok := monthAbbrev[strings.ToLower(m[2])]; ok {
			if dt, ok := calendarDate(atoi(m[3]), int(mon), atoi(m[1]), now); ok {
				return dt, true
			}
		}
	}
	return time.Time{}, false
}

// calendarDate validates year/month/day as a real date and applies the window.
func calendarDate(year, month, day int, now time.Time) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	dt := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if dt.Year() != year || dt.Month() != time.Month(month) || dt.Day() != day {
		return time.Time{}, false // overflowed, e.g. Feb 30
	}
	if !extract.WithinDateWindow(dt, now) {
		return time.Time{}, false
	}
	return dt, true
}

func normalizeYear(y int) int {
	if y < 100 {
		return 2000 + y
	}
	return y
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
