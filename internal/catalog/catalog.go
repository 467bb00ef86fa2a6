// Package catalog defines the deck catalog surface consumed by the API and
// sweeper programs. The canonical implementation is the JSON-file registry;
// the interface exists so callers can be tested without touching disk.
package catalog

import (
	"github.com/wildcard-labs/deck-indexer/internal/domain"
)

// ContractResolver resolves deck identities to their on-chain contract
//
//go:generate mockgen -source=catalog.go -destination=../mocks/contract_resolver.go -package=mocks -mock_names=ContractResolver=MockContractResolver
type ContractResolver interface {
	// GetDeckBySlug resolves a deck by its URL slug
	GetDeckBySlug(slug string) (*domain.Deck, error)

	// GetDeckByContract resolves a deck by its contract address,
	// case-insensitively
	GetDeckByContract(contract string) (*domain.Deck, error)

	// Decks returns every registered deck in registry order
	Decks() []domain.Deck
}

// CardResolver resolves suit and value traits to a canonical card design
// within a tracked deck
type CardResolver interface {
	// GetCardByTraits resolves a card by its suit and value traits,
	// case-insensitively. Returns domain.ErrDeckNotFound for an unknown deck
	// and domain.ErrCardNotFound when the traits name no card in the
	// standard deck.
	GetCardByTraits(deck, suit, value string) (*domain.Card, error)
}
