package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestItemSum(t *testing.T) {
	items := []ExtractedItem{
		{Name: "Milk", Price: 3.99, Quantity: 1},
		{Name: "Bananas", Price: 1.50, Quantity: 2},
		{Name: "Bread", Price: 2.00, Quantity: 0}, // quantity floor is 1
	}
	assert.InDelta(t, 8.99, ItemSum(items), 0.001)
}

func TestReconcile(t *testing.T) {
	items := []ExtractedItem{
		{Name: "A", Price: 50, Quantity: 1},
		{Name: "B", Price: 50, Quantity: 1},
	}

	total := 105.0
	assert.True(t, Reconcile(&total, items, 0.05), "5%% over the item sum is within tolerance")

	total = 106.0
	assert.False(t, Reconcile(&total, items, 0.05), "just past 5%% must not reconcile")

	total = 100.0
	assert.True(t, Reconcile(&total, items, 0.05))

	assert.False(t, Reconcile(nil, items, 0.05), "missing total never reconciles")

	total = 0
	assert.False(t, Reconcile(&total, items, 0.05), "zero total never reconciles")

	total = -5
	assert.False(t, Reconcile(&total, items, 0.05))
}

func TestValidItemPrice(t *testing.T) {
	assert.True(t, ValidItemPrice(0.01))
	assert.True(t, ValidItemPrice(9999.99))
	assert.False(t, ValidItemPrice(0))
	assert.False(t, ValidItemPrice(-1))
	assert.False(t, ValidItemPrice(10000))
}

func TestClampQuantity(t *testing.T) {
	assert.Equal(t, 1, ClampQuantity(0))
	assert.Equal(t, 1, ClampQuantity(-3))
	assert.Equal(t, 1, ClampQuantity(100))
	assert.Equal(t, 1, ClampQuantity(5000))
	assert.Equal(t, 2, ClampQuantity(2))
	assert.Equal(t, 99, ClampQuantity(99))
}

func TestWithinDateWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

	today := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, WithinDateWindow(today, now))

	oneYearAgo := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, WithinDateWindow(oneYearAgo, now), "exactly one year ago is inclusive")

	beyondWindow := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	assert.False(t, WithinDateWindow(beyondWindow, now))

	tomorrow := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	assert.False(t, WithinDateWindow(tomorrow, now))

	// time of day never matters
	lateToday := time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC)
	assert.True(t, WithinDateWindow(lateToday, now))
}

func TestWithinDateWindowLeapSpan(t *testing.T) {
	// the window is one calendar year, so a span containing Feb 29 covers
	// 366 days at the boundary
	now := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

	boundary := time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)
	assert.True(t, WithinDateWindow(boundary, now), "366 days back across Feb 29 is still in window")

	beyond := time.Date(2023, 6, 14, 0, 0, 0, 0, time.UTC)
	assert.False(t, WithinDateWindow(beyond, now))
}

func TestEmptyReceipt(t *testing.T) {
	rec := Empty()
	assert.True(t, rec.IsEmpty())
	assert.Equal(t, "USD", rec.Currency)

	name := "Target"
	rec.StoreName = &name
	assert.False(t, rec.IsEmpty())
}
