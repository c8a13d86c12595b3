package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Entry is one canonical store with its known aliases. Reference data only;
// nothing in this subsystem mutates it after load.
type Entry struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// Catalog is a read-only store lookup, safe for unsynchronized concurrent
// reads across workers.
type Catalog struct {
	entries []Entry
}

// New builds a catalog from the given entries, dropping blanks.
func New(entries []Entry) *Catalog {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		out = append(out, e)
	}
	return &Catalog{entries: out}
}

// Load reads a JSON seed file: an array of {"name": ..., "aliases": [...]}.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(entries), nil
}

// Entries returns the catalog contents. Callers must not modify the slice.
func (c *Catalog) Entries() []Entry {
	return c.entries
}

// Len returns the number of canonical stores.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Builtin returns the default seed of common chains. Deployments with their
// own reference data load a JSON file instead.
func Builtin() *Catalog {
	return New([]Entry{
		{Name: "Walmart", Aliases: []string{"walmart", "wal mart", "wal-mart", "walmart supercenter", "walmart neighborhood market"}},
		{Name: "Target", Aliases: []string{"target"}},
		{Name: "Costco", Aliases: []string{"costco", "costco wholesale"}},
		{Name: "Kroger", Aliases: []string{"kroger"}},
		{Name: "Safeway", Aliases: []string{"safeway"}},
		{Name: "Walgreens", Aliases: []string{"walgreens"}},
		{Name: "CVS", Aliases: []string{"cvs", "cvs pharmacy", "cvs/pharmacy"}},
		{Name: "The Home Depot", Aliases: []string{"home depot", "the home depot"}},
		{Name: "Lowe's", Aliases: []string{"lowes", "lowe's"}},
		{Name: "Whole Foods Market", Aliases: []string{"whole foods", "whole foods market"}},
		{Name: "Trader Joe's", Aliases: []string{"trader joes", "trader joe's"}},
		{Name: "Aldi", Aliases: []string{"aldi"}},
		{Name: "Publix", Aliases: []string{"publix"}},
		{Name: "7-Eleven", Aliases: []string{"7-eleven", "7 eleven", "seven eleven"}},
		{Name: "Best Buy", Aliases: []string{"best buy", "bestbuy"}},
		{Name: "Starbucks", Aliases: []string{"starbucks", "starbucks coffee"}},
		{Name: "McDonald's", Aliases: []string{"mcdonalds", "mcdonald's"}},
		{Name: "Dollar General", Aliases: []string{"dollar general"}},
		{Name: "Sam's Club", Aliases: []string{"sams club", "sam's club"}},
		{Name: "IKEA", Aliases: []string{"ikea"}},
	})
}
