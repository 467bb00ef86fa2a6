package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildcard-labs/deck-indexer/internal/domain"
)

func newCardResolver(t *testing.T) *standardCardResolver {
	t.Helper()
	path := writeRegistry(t, `{"decks": [
		{"name": "Winds of Change", "slug": "winds", "contract": "0xabc"}
	]}`)
	contracts, err := newLoader().Load(path)
	require.NoError(t, err)
	return NewStandardCardResolver(contracts).(*standardCardResolver)
}

func TestGetCardByTraits(t *testing.T) {
	r := newCardResolver(t)

	t.Run("resolves standard cards case-insensitively", func(t *testing.T) {
		card, err := r.GetCardByTraits("winds", "Spades", "ACE")
		require.NoError(t, err)
		assert.Equal(t, domain.Card{Suit: "spades", Value: "ace"}, *card)

		card, err = r.GetCardByTraits("winds", "hearts", "10")
		require.NoError(t, err)
		assert.Equal(t, domain.Card{Suit: "hearts", Value: "10"}, *card)
	})

	t.Run("resolves both jokers", func(t *testing.T) {
		for _, suit := range []string{domain.SuitRed, domain.SuitBlack} {
			card, err := r.GetCardByTraits("winds", suit, "Joker")
			require.NoError(t, err)
			assert.Equal(t, "joker", card.Value)
		}
	})

	t.Run("rejects traits outside the standard deck", func(t *testing.T) {
		_, err := r.GetCardByTraits("winds", "spades", "eleven")
		assert.ErrorIs(t, err, domain.ErrCardNotFound)

		_, err = r.GetCardByTraits("winds", "stars", "ace")
		assert.ErrorIs(t, err, domain.ErrCardNotFound)

		// Jokers only exist in the red and black suits.
		_, err = r.GetCardByTraits("winds", "spades", "joker")
		assert.ErrorIs(t, err, domain.ErrCardNotFound)
	})

	t.Run("rejects unknown decks", func(t *testing.T) {
		_, err := r.GetCardByTraits("unknown", "spades", "ace")
		assert.ErrorIs(t, err, domain.ErrDeckNotFound)
	})
}
