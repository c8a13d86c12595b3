package extract

import "math"

// DefaultTolerance absorbs tax and rounding when comparing the printed total
// against the item sum.
const DefaultTolerance = 0.05

// ItemSum computes Σ(price × quantity) over the extracted items.
func ItemSum(items []ExtractedItem) float64 {
	var sum float64
	for _, it := range items {
		q := it.Quantity
		if q < 1 {
			q = 1
		}
		sum += it.Price * float64(q)
	}
	return sum
}

// Reconcile cross-checks the extracted total against the computed item sum.
// It returns true iff total is present and positive and the relative delta is
// within tolerance. A zero or negative total never reconciles. A mismatch is
// a data-quality flag, not an error: the job still completes.
func Reconcile(total *float64, items []ExtractedItem, tolerance float64) bool {
	if total == nil || *total <= 0 {
		return false
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	calculated := ItemSum(items)
	return math.Abs(*total-calculated)/(*total) <= tolerance
}
