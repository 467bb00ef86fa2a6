package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildcard-labs/deck-indexer/internal/adapter"
	"github.com/wildcard-labs/deck-indexer/internal/domain"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "decks.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newLoader() DeckRegistryLoader {
	return NewDeckRegistryLoader(adapter.NewFileSystem(), adapter.NewJSON())
}

func TestLoad(t *testing.T) {
	path := writeRegistry(t, `{
		"version": 1,
		"decks": [
			{"name": "Winds of Change", "slug": "winds", "contract": "0xABCDEF", "collection": "winds-of-change"},
			{"name": "Second Deck", "slug": "second", "contract": "0x123456"}
		]
	}`)

	resolver, err := newLoader().Load(path)
	require.NoError(t, err)

	decks := resolver.Decks()
	require.Len(t, decks, 2)

	// Contract addresses are lowercased on load.
	assert.Equal(t, "0xabcdef", decks[0].Contract)
	assert.Equal(t, "winds-of-change", decks[0].Collection)

	// Collection defaults to the slug when omitted.
	assert.Equal(t, "second", decks[1].Collection)
}

func TestLoadRejectsBrokenRegistries(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := newLoader().Load(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		path := writeRegistry(t, `{"decks": [`)
		_, err := newLoader().Load(path)
		assert.Error(t, err)
	})

	t.Run("entry without contract", func(t *testing.T) {
		path := writeRegistry(t, `{"decks": [{"name": "Broken", "slug": "broken"}]}`)
		_, err := newLoader().Load(path)
		assert.Error(t, err)
	})

	t.Run("duplicate slug", func(t *testing.T) {
		path := writeRegistry(t, `{"decks": [
			{"name": "A", "slug": "dup", "contract": "0x1"},
			{"name": "B", "slug": "dup", "contract": "0x2"}
		]}`)
		_, err := newLoader().Load(path)
		assert.Error(t, err)
	})
}

func TestGetDeckBySlug(t *testing.T) {
	path := writeRegistry(t, `{"decks": [
		{"name": "Winds of Change", "slug": "winds", "contract": "0xabc"}
	]}`)
	resolver, err := newLoader().Load(path)
	require.NoError(t, err)

	deck, err := resolver.GetDeckBySlug("winds")
	require.NoError(t, err)
	assert.Equal(t, "Winds of Change", deck.Name)

	_, err = resolver.GetDeckBySlug("unknown")
	assert.ErrorIs(t, err, domain.ErrDeckNotFound)
}

func TestGetDeckByContract(t *testing.T) {
	path := writeRegistry(t, `{"decks": [
		{"name": "Winds of Change", "slug": "winds", "contract": "0xAbC"}
	]}`)
	resolver, err := newLoader().Load(path)
	require.NoError(t, err)

	// Lookup is case-insensitive.
	deck, err := resolver.GetDeckByContract("0xABC")
	require.NoError(t, err)
	assert.Equal(t, "winds", deck.Slug)

	_, err = resolver.GetDeckByContract("0xdead")
	assert.ErrorIs(t, err, domain.ErrDeckNotFound)
}
