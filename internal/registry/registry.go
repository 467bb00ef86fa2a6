package registry

import (
	"fmt"
	"strings"

	"github.com/wildcard-labs/deck-indexer/internal/adapter"
	"github.com/wildcard-labs/deck-indexer/internal/catalog"
	"github.com/wildcard-labs/deck-indexer/internal/domain"
)

// DeckInfo represents a deck entry in the registry file
type DeckInfo struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Contract string `json:"contract"`
	// Collection is the OpenSea collection slug; defaults to Slug when empty
	Collection string `json:"collection,omitempty"`
}

// DeckRegistryData represents the structure of the registry JSON file
type DeckRegistryData struct {
	Version int        `json:"version"`
	Decks   []DeckInfo `json:"decks"`
}

// deckRegistry is the internal implementation of catalog.ContractResolver
type deckRegistry struct {
	decks []domain.Deck
	// Fast lookup maps keyed by slug and lowercased contract
	bySlug     map[string]*domain.Deck
	byContract map[string]*domain.Deck
}

// DeckRegistryLoader defines the interface for loading deck registries from files
//
//go:generate mockgen -source=registry.go -destination=../mocks/deck_registry_loader.go -package=mocks -mock_names=DeckRegistryLoader=MockDeckRegistryLoader
type DeckRegistryLoader interface {
	// Load loads the deck registry from a JSON file
	Load(filePath string) (catalog.ContractResolver, error)
}

// deckRegistryLoader is the internal implementation of DeckRegistryLoader
type deckRegistryLoader struct {
	fs   adapter.FileSystem
	json adapter.JSON
}

// NewDeckRegistryLoader creates a new DeckRegistryLoader with injected dependencies
func NewDeckRegistryLoader(fs adapter.FileSystem, json adapter.JSON) DeckRegistryLoader {
	return &deckRegistryLoader{
		fs:   fs,
		json: json,
	}
}

// Load loads the deck registry from a JSON file
func (l *deckRegistryLoader) Load(filePath string) (catalog.ContractResolver, error) {
	data, err := l.fs.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var registryData DeckRegistryData
	if err := l.json.Unmarshal(data, &registryData); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	return buildRegistry(&registryData)
}

func buildRegistry(data *DeckRegistryData) (catalog.ContractResolver, error) {
	r := &deckRegistry{
		decks:      make([]domain.Deck, 0, len(data.Decks)),
		bySlug:     make(map[string]*domain.Deck),
		byContract: make(map[string]*domain.Deck),
	}

	for _, info := range data.Decks {
		if info.Slug == "" || info.Contract == "" {
			return nil, fmt.Errorf("registry entry %q is missing slug or contract", info.Name)
		}
		collection := info.Collection
		if collection == "" {
			collection = info.Slug
		}
		deck := domain.Deck{
			Name:       info.Name,
			Slug:       info.Slug,
			Contract:   strings.ToLower(info.Contract),
			Collection: collection,
		}
		if _, ok := r.bySlug[deck.Slug]; ok {
			return nil, fmt.Errorf("duplicate deck slug %q in registry", deck.Slug)
		}
		r.decks = append(r.decks, deck)
		d := &r.decks[len(r.decks)-1]
		r.bySlug[deck.Slug] = d
		r.byContract[deck.Contract] = d
	}

	return r, nil
}

// GetDeckBySlug resolves a deck by its URL slug
func (r *deckRegistry) GetDeckBySlug(slug string) (*domain.Deck, error) {
	if d, ok := r.bySlug[slug]; ok {
		deck := *d
		return &deck, nil
	}
	return nil, domain.ErrDeckNotFound
}

// GetDeckByContract resolves a deck by its contract address
func (r *deckRegistry) GetDeckByContract(contract string) (*domain.Deck, error) {
	if d, ok := r.byContract[strings.ToLower(contract)]; ok {
		deck := *d
		return &deck, nil
	}
	return nil, domain.ErrDeckNotFound
}

// Decks returns every registered deck in registry order
func (r *deckRegistry) Decks() []domain.Deck {
	out := make([]domain.Deck, len(r.decks))
	copy(out, r.decks)
	return out
}
