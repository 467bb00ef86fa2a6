// Package holders derives collection-wide holder sets from mirrored NFT
// snapshots. Everything here is pure computation: the same NFT list always
// produces the same holder sets, independent of input order.
package holders

import (
	"sort"
	"strings"

	"github.com/wildcard-labs/deck-indexer/internal/domain"
)

// Inventory is one address's card collection: the set of unique
// (suit, value) designs it holds plus every token id backing them. An
// address holding multiple copies of the same design counts the design
// once but records all of its token ids.
type Inventory struct {
	Cards    map[domain.Card]struct{}
	TokenIDs []string
}

// Map indexes inventories by owner address
type Map map[string]*Inventory

// cardTraits resolves the (suit, value) design from an NFT's traits. The
// suit comes from a "Suit" trait, or "Color" for the two jokers. Both
// halves are lowercased. Returns false when either half is missing.
func cardTraits(traits []domain.Trait) (domain.Card, bool) {
	var card domain.Card
	for _, t := range traits {
		switch strings.ToLower(t.TraitType) {
		case "suit", "color":
			card.Suit = strings.ToLower(t.Value)
		case "value":
			card.Value = strings.ToLower(t.Value)
		}
	}
	if card.Suit == "" || card.Value == "" {
		return domain.Card{}, false
	}
	return card, true
}

// BuildHoldersMap builds the per-address inventory for every NFT carrying
// both owners and resolvable suit/value traits. NFTs missing either are
// excluded entirely.
func BuildHoldersMap(nfts []domain.NFT) Map {
	m := make(Map)
	for _, nft := range nfts {
		if len(nft.Owners) == 0 || len(nft.Traits) == 0 {
			continue
		}
		card, ok := cardTraits(nft.Traits)
		if !ok {
			continue
		}
		for _, owner := range nft.Owners {
			addr := strings.ToLower(owner.Address)
			inv, ok := m[addr]
			if !ok {
				inv = &Inventory{Cards: make(map[domain.Card]struct{})}
				m[addr] = inv
			}
			inv.Cards[card] = struct{}{}
			inv.TokenIDs = append(inv.TokenIDs, nft.Identifier)
		}
	}
	return m
}

// CalculateDeckHolders returns the full-deck holder sets. An address with
// at least 52 unique designs holds a full deck; exactly 54 also holds the
// deck with both jokers. The ==54 comparison (rather than >=54) matches
// the established product behavior, including the quirk that 53 unique
// cards qualifies only for fullDecks.
func CalculateDeckHolders(m Map) (fullDecks, fullDecksWithJokers []string) {
	fullDecks = []string{}
	fullDecksWithJokers = []string{}
	for addr, inv := range m {
		n := len(inv.Cards)
		if n >= domain.FullDeckSize {
			fullDecks = append(fullDecks, addr)
		}
		if n == domain.FullDeckWithJokersSize {
			fullDecksWithJokers = append(fullDecksWithJokers, addr)
		}
	}
	sort.Strings(fullDecks)
	sort.Strings(fullDecksWithJokers)
	return fullDecks, fullDecksWithJokers
}

// CalculateSuitHolders returns, per suit key, the addresses holding a
// complete suit: exactly 13 unique cards for the four standard suits,
// exactly 1 for the red/black joker singletons. The exact-match threshold
// is deliberate; an address with more than 13 unique cards of one suit
// (only possible with dirty trait data) is excluded, as the established
// behavior dictates.
func CalculateSuitHolders(m Map) map[string][]string {
	result := map[string][]string{
		domain.SuitSpades:   {},
		domain.SuitDiamonds: {},
		domain.SuitHearts:   {},
		domain.SuitClubs:    {},
		domain.SuitRed:      {},
		domain.SuitBlack:    {},
	}

	for addr, inv := range m {
		counts := make(map[string]int)
		for card := range inv.Cards {
			counts[card.Suit]++
		}
		for _, suit := range domain.StandardSuits {
			if counts[suit] == domain.SuitSize {
				result[suit] = append(result[suit], addr)
			}
		}
		for _, suit := range []string{domain.SuitRed, domain.SuitBlack} {
			if counts[suit] == 1 {
				result[suit] = append(result[suit], addr)
			}
		}
	}

	for suit := range result {
		sort.Strings(result[suit])
	}
	return result
}

// intersect returns the sorted intersection of two address lists
func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(a))
	for _, addr := range a {
		set[addr] = struct{}{}
	}
	out := []string{}
	for _, addr := range b {
		if _, ok := set[addr]; ok {
			out = append(out, addr)
		}
	}
	sort.Strings(out)
	return out
}

// Aggregate runs the full holder computation over an NFT list. Joker
// holders must hold both the black and the red joker.
func Aggregate(nfts []domain.NFT) *domain.HolderAggregate {
	m := BuildHoldersMap(nfts)
	fullDecks, fullDecksWithJokers := CalculateDeckHolders(m)
	suits := CalculateSuitHolders(m)

	return &domain.HolderAggregate{
		FullDecks:           fullDecks,
		FullDecksWithJokers: fullDecksWithJokers,
		Spades:              suits[domain.SuitSpades],
		Diamonds:            suits[domain.SuitDiamonds],
		Hearts:              suits[domain.SuitHearts],
		Clubs:               suits[domain.SuitClubs],
		Jokers:              intersect(suits[domain.SuitBlack], suits[domain.SuitRed]),
	}
}

// CardHolders returns every address holding a given card design, sorted.
func CardHolders(m Map, card domain.Card) []string {
	out := make([]string, 0)
	for addr, inv := range m {
		if _, ok := inv.Cards[card]; ok {
			out = append(out, addr)
		}
	}
	sort.Strings(out)
	return out
}

// TopHolders ranks addresses by unique-card count, descending, ties broken
// by address for determinism. Used by the leaderboard composition.
func TopHolders(m Map, limit int) []domain.LeaderboardEntry {
	type holder struct {
		addr  string
		count int
	}
	ranked := make([]holder, 0, len(m))
	for addr, inv := range m {
		ranked = append(ranked, holder{addr: addr, count: len(inv.Cards)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].addr < ranked[j].addr
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	entries := make([]domain.LeaderboardEntry, 0, len(ranked))
	for _, h := range ranked {
		entries = append(entries, domain.LeaderboardEntry{Address: h.addr, Count: h.count})
	}
	return entries
}

// RareCardHolders returns the addresses holding the rarest card designs:
// designs minted on at most maxMints tokens. Each qualifying address is
// counted once per rare design it holds.
func RareCardHolders(nfts []domain.NFT, maxMints int, limit int) []domain.LeaderboardEntry {
	mints := make(map[domain.Card]int)
	ownersByCard := make(map[domain.Card]map[string]struct{})
	for _, nft := range nfts {
		if len(nft.Owners) == 0 || len(nft.Traits) == 0 {
			continue
		}
		card, ok := cardTraits(nft.Traits)
		if !ok {
			continue
		}
		mints[card]++
		if ownersByCard[card] == nil {
			ownersByCard[card] = make(map[string]struct{})
		}
		for _, owner := range nft.Owners {
			ownersByCard[card][strings.ToLower(owner.Address)] = struct{}{}
		}
	}

	counts := make(map[string]int)
	for card, n := range mints {
		if n > maxMints {
			continue
		}
		for addr := range ownersByCard[card] {
			counts[addr]++
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(counts))
	for addr, n := range counts {
		entries = append(entries, domain.LeaderboardEntry{Address: addr, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Address < entries[j].Address
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}
