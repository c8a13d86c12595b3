package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemExtractorBasicLine(t *testing.T) {
	e := NewItemExtractor()

	items := e.Detect("Milk 2% Gallon $3.99")
	require.Len(t, items, 1)
	assert.Equal(t, "Milk 2% Gallon", items[0].Name)
	assert.InDelta(t, 3.99, items[0].Price, 0.001)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, 0, items[0].LineNumber)
	assert.InDelta(t, 0.9, items[0].Confidence, 0.001)
}

func TestItemExtractorQuantityPrefix(t *testing.T) {
	e := NewItemExtractor()

	items := e.Detect("2 @ Bananas $1.50")
	require.Len(t, items, 1)
	assert.Equal(t, "Bananas", items[0].Name)
	assert.InDelta(t, 1.50, items[0].Price, 0.001)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestItemExtractorQuantityWord(t *testing.T) {
	e := NewItemExtractor()

	items := e.Detect("Paper Towels Qty: 3 8.97")
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
}

func TestItemExtractorOverflowQuantityResets(t *testing.T) {
	e := NewItemExtractor()

	items := e.Detect("500 x Screws $4.99")
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity, "quantities at or past 100 reset to 1")
}

func TestItemExtractorSpacedCents(t *testing.T) {
	e := NewItemExtractor()

	items := e.Detect("BREAD 2 29")
	require.Len(t, items, 1)
	assert.Equal(t, "BREAD", items[0].Name)
	assert.InDelta(t, 2.29, items[0].Price, 0.001)
}

func TestItemExtractorSKUPrefixStripped(t *testing.T) {
	e := NewItemExtractor()

	items := e.Detect("#004578 Orange Juice 4.29")
	require.Len(t, items, 1)
	assert.Equal(t, "Orange Juice", items[0].Name)
}

func TestItemExtractorSkipsBoilerplate(t *testing.T) {
	e := NewItemExtractor()

	text := "SUBTOTAL 5.49\n" +
		"TAX 0.44\n" +
		"TOTAL 5.93\n" +
		"VISA **** 1234\n" +
		"CHANGE 0.00\n" +
		"--------------\n" +
		"Thank you for shopping 10.00\n"
	assert.Empty(t, e.Detect(text))
}

func TestItemExtractorLineNumbersAreOrigin(t *testing.T) {
	e := NewItemExtractor()

	text := "WALMART\n" +
		"Milk $3.99\n" +
		"\n" +
		"Eggs $2.49\n"
	items := e.Detect(text)
	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].LineNumber)
	assert.Equal(t, 3, items[1].LineNumber)
}

func TestItemExtractorShortNamesDropped(t *testing.T) {
	e := NewItemExtractor()

	assert.Empty(t, e.Detect("X $3.99"))
	assert.Empty(t, e.Detect("$3.99"))
}

func TestItemConfidenceSymbolBeatsBare(t *testing.T) {
	e := NewItemExtractor()

	withSymbol := e.Detect("Milk $3.99")
	bare := e.Detect("Milk 3.99")
	require.Len(t, withSymbol, 1)
	require.Len(t, bare, 1)
	assert.Greater(t, withSymbol[0].Confidence, bare[0].Confidence,
		"an explicit currency symbol scores strictly higher")
}
