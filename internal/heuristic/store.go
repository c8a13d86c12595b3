package heuristic

import (
	"regexp"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/receiptwise/pipeline/internal/catalog"
)

const (
	defaultStoreSearchLines = 12  // store identity is almost always near the top
	defaultStoreThreshold   = 0.8 // similarity floor; absorbs single-character OCR noise
)

// StoreDetector resolves a receipt's store by matching header lines against
// the catalog: exact alias containment first, then Levenshtein similarity.
type StoreDetector struct {
	catalog   *catalog.Catalog
	maxLines  int
	threshold float64
}

func NewStoreDetector(cat *catalog.Catalog) *StoreDetector {
	return &StoreDetector{
		catalog:   cat,
		maxLines:  defaultStoreSearchLines,
		threshold: defaultStoreThreshold,
	}
}

var (
	reStoreNonAlnum = regexp.MustCompile(`[^a-z0-9 ]+`)
	// common OCR confusions, applied as an alternate reading of the line
	ocrConfusions = strings.NewReplacer("0", "o", "1", "l", "5", "s")
	levParams     = levenshtein.NewParams()
)

// Detect returns the canonical store name, or nil when no header line clears
// the similarity threshold. Case-insensitive; tolerant of punctuation noise
// and O/0, I/l style substitutions.
func (d *StoreDetector) Detect(text string) *string {
	lines := strings.Split(text, "\n")
	if len(lines) > d.maxLines {
		lines = lines[:d.maxLines]
	}

	bestScore := 0.0
	var bestName string
	for _, line := range lines {
		norm := normalizeStoreLine(line)
		if len(norm) < 3 {
			continue
		}
		candidates := lineReadings(norm)
		for _, e := range d.catalog.Entries() {
			for _, alias := range e.Aliases {
				aliasNorm := normalizeStoreLine(alias)
				if aliasNorm == "" {
					continue
				}
				aliasFlat := strings.ReplaceAll(aliasNorm, " ", "")
				for _, cand := range candidates {
					// exact / containment match
					if cand == aliasNorm || (len(aliasFlat) >= 4 && strings.Contains(cand, aliasFlat)) {
						name := e.Name
						return &name
					}
					// fuzzy match: 1 - distance/max(len)
					if s := levenshtein.Similarity(cand, aliasNorm, levParams); s > bestScore {
						bestScore = s
						bestName = e.Name
					}
					if s := levenshtein.Similarity(cand, aliasFlat, levParams); s > bestScore {
						bestScore = s
						bestName = e.Name
					}
				}
			}
		}
	}
	if bestScore >= d.threshold {
		return &bestName
	}
	return nil
}

func normalizeStoreLine(s string) string {
	s = strings.ToLower(s)
	s = reStoreNonAlnum.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// lineReadings returns the normalized line plus variants with spaces removed
// and with digit-for-letter OCR confusions undone.
func lineReadings(norm string) []string {
	flat := strings.ReplaceAll(norm, " ", "")
	out := []string{norm, flat}
	if sub := ocrConfusions.Replace(norm); sub != norm {
		out = append(out, sub, strings.ReplaceAll(sub, " ", ""))
	}
	return out
}
