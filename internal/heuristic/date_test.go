package heuristic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	}
}

func newTestDateExtractor() *DateExtractor {
	d := NewDateExtractor()
	d.Now = fixedClock()
	return d
}

func TestDateExtractorISO(t *testing.T) {
	d := newTestDateExtractor()

	got := d.Detect("Date: 2025-06-01\nTOTAL 10.00")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *got)
}

func TestDateExtractorSlashFormats(t *testing.T) {
	d := newTestDateExtractor()

	got := d.Detect("06/01/2025")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *got, "slash dates read month-first")

	got = d.Detect("2025/06/01")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *got)
}

func TestDateExtractorDotIsDayFirst(t *testing.T) {
	d := newTestDateExtractor()

	got := d.Detect("03.04.2025")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 4, 3, 0, 0, 0, 0, time.UTC), *got)
}

func TestDateExtractorAmbiguousFallsThrough(t *testing.T) {
	d := newTestDateExtractor()

	// 25 cannot be a month, so the day-first reading applies
	got := d.Detect("25/05/2025")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 5, 25, 0, 0, 0, 0, time.UTC), *got)
}

func TestDateExtractorMonthName(t *testing.T) {
	d := newTestDateExtractor()

	got := d.Detect("Jun 1, 2025")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *got)

	got = d.Detect("1st June 2025")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *got)
}

func TestDateExtractorTwoDigitYear(t *testing.T) {
	d := newTestDateExtractor()

	got := d.Detect("06/01/25")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *got)
}

func TestDateExtractorWindow(t *testing.T) {
	d := newTestDateExtractor()

	assert.Nil(t, d.Detect("2025-06-16"), "tomorrow is rejected")
	assert.Nil(t, d.Detect("2024-06-14"), "366 days ago is rejected")

	got := d.Detect("2024-06-15")
	require.NotNil(t, got, "exactly one year ago is accepted")
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), *got)
}

func TestDateExtractorImpossibleDates(t *testing.T) {
	d := newTestDateExtractor()

	assert.Nil(t, d.Detect("2025-02-30"), "calendar overflow is not a date")
	assert.Nil(t, d.Detect("2025-13-01"))
	assert.Nil(t, d.Detect("no dates here"))
}

func TestDateExtractorIndicatorPriority(t *testing.T) {
	d := newTestDateExtractor()

	// the indicator line wins even though another date appears first
	text := "printed 2025-06-10\nPurchase Date: 2025-06-01\n"
	got := d.Detect(text)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *got)
}
