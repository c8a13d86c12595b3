package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDropsBlankEntries(t *testing.T) {
	c := New([]Entry{
		{Name: "Migros", Aliases: []string{"migros"}},
		{Name: "   "},
		{Name: ""},
	})
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, "Migros", c.Entries()[0].Name)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stores.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"name": "Coop", "aliases": ["coop", "coop city"]},
		{"name": "Denner", "aliases": ["denner"]}
	]`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"coop", "coop city"}, c.Entries()[0].Aliases)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestBuiltinNonEmpty(t *testing.T) {
	c := Builtin()
	assert.Greater(t, c.Len(), 10)
	for _, e := range c.Entries() {
		assert.NotEmpty(t, e.Name)
		assert.NotEmpty(t, e.Aliases, e.Name)
	}
}
