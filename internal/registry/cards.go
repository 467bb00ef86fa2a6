package registry

import (
	"strings"

	"github.com/wildcard-labs/deck-indexer/internal/catalog"
	"github.com/wildcard-labs/deck-indexer/internal/domain"
)

// standardValues are the 13 card values of each standard suit, lowercased.
var standardValues = []string{
	"ace", "2", "3", "4", "5", "6", "7", "8", "9", "10",
	"jack", "queen", "king",
}

// standardCardResolver resolves suit/value traits against the 54-card
// standard deck (four 13-card suits plus the red and black jokers). Deck
// membership is checked through the contract resolver; every tracked deck
// shares the same card set.
type standardCardResolver struct {
	contracts catalog.ContractResolver
	cards     map[domain.Card]struct{}
}

// NewStandardCardResolver creates a card resolver over the standard deck
func NewStandardCardResolver(contracts catalog.ContractResolver) catalog.CardResolver {
	cards := make(map[domain.Card]struct{}, domain.FullDeckWithJokersSize)
	for _, suit := range domain.StandardSuits {
		for _, value := range standardValues {
			cards[domain.Card{Suit: suit, Value: value}] = struct{}{}
		}
	}
	cards[domain.Card{Suit: domain.SuitRed, Value: "joker"}] = struct{}{}
	cards[domain.Card{Suit: domain.SuitBlack, Value: "joker"}] = struct{}{}

	return &standardCardResolver{
		contracts: contracts,
		cards:     cards,
	}
}

// GetCardByTraits resolves a card by its suit and value traits,
// case-insensitively
func (r *standardCardResolver) GetCardByTraits(deck, suit, value string) (*domain.Card, error) {
	if _, err := r.contracts.GetDeckBySlug(deck); err != nil {
		return nil, err
	}

	card := domain.Card{
		Suit:  strings.ToLower(suit),
		Value: strings.ToLower(value),
	}
	if _, ok := r.cards[card]; !ok {
		return nil, domain.ErrCardNotFound
	}
	return &card, nil
}
