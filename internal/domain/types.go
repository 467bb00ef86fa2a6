package domain

import "time"

// Suit keys used by the holder aggregation. The four standard suits hold 13
// card designs each; "red" and "black" are the two joker cards, each a
// singleton suit of its own.
const (
	SuitSpades   = "spades"
	SuitDiamonds = "diamonds"
	SuitHearts   = "hearts"
	SuitClubs    = "clubs"
	SuitRed      = "red"
	SuitBlack    = "black"
)

// StandardSuits are the four 13-card suits, in the order they are reported.
var StandardSuits = []string{SuitSpades, SuitDiamonds, SuitHearts, SuitClubs}

// FullDeckSize is the number of unique (suit, value) designs in a deck
// without jokers. FullDeckWithJokersSize adds the two joker cards.
const (
	FullDeckSize           = 52
	FullDeckWithJokersSize = 54
	SuitSize               = 13
)

// Card identifies a card design by its suit and value traits. Both fields
// are lowercased before comparison so trait-casing differences collapse onto
// the same design.
type Card struct {
	Suit  string `json:"suit"`
	Value string `json:"value"`
}

// Trait is a single trait/attribute on an NFT. The trait types of interest
// are "Suit" (or "Color" for the jokers) and "Value".
type Trait struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

// Owner is one ownership record on an NFT.
type Owner struct {
	Address  string `json:"address"`
	Quantity int64  `json:"quantity"`
}

// NFT is the ownership and trait snapshot for one token, as mirrored from
// the upstream marketplace. An NFT with no owners or no traits is excluded
// from all aggregation.
type NFT struct {
	Identifier    string  `json:"identifier"`
	Contract      string  `json:"contract"`
	TokenStandard string  `json:"token_standard"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Traits        []Trait `json:"traits"`
	Owners        []Owner `json:"owners"`
}

// Offer is one item inside a listing. Token and IdentifierOrCriteria are
// lowercased before storage so contract-address lookups are
// case-insensitive.
type Offer struct {
	Token                string `json:"token"`
	IdentifierOrCriteria string `json:"identifierOrCriteria"`
}

// ListingPrice holds the current sell-side price of a listing. Value is an
// integer string in the smallest currency unit.
type ListingPrice struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
	Decimals int    `json:"decimals"`
}

// Listing is a current sell-side offer for one or more tokens. Listings are
// bulk-replaced per contract on every full refresh, never partially updated.
type Listing struct {
	OrderHash string       `json:"order_hash"`
	Price     ListingPrice `json:"price"`
	Offers    []Offer      `json:"offers"`
}

// SaleEvent is one marketplace sale from the event feed.
type SaleEvent struct {
	EventType      string `json:"event_type"`
	EventTimestamp int64  `json:"event_timestamp"`
	Seller         string `json:"seller"`
	Buyer          string `json:"buyer"`
	Quantity       int    `json:"quantity"`
	PaymentAmount  string `json:"payment_amount"`
	PaymentSymbol  string `json:"payment_symbol"`
}

// HolderAggregate is the holder computation output embedded in the deck
// cache. All slices are sorted lexicographically so the aggregate is
// deterministic for a given NFT set.
type HolderAggregate struct {
	FullDecks           []string `json:"fullDecks"`
	FullDecksWithJokers []string `json:"fullDecksWithJokers"`
	Spades              []string `json:"spades"`
	Diamonds            []string `json:"diamonds"`
	Hearts              []string `json:"hearts"`
	Clubs               []string `json:"clubs"`
	Jokers              []string `json:"jokers"`
}

// CollectionStats is the rolled-up statistics view served to API callers.
// Stale is set when an expired cache record was served because the live
// refresh failed.
type CollectionStats struct {
	Collection   string     `json:"collection"`
	Volume       float64    `json:"volume"`
	FloorPrice   float64    `json:"floor_price"`
	NumOwners    int        `json:"num_owners"`
	TotalSupply  int        `json:"total_supply"`
	OnSale       int        `json:"on_sale"`
	SalesCount   int        `json:"sales_count"`
	AveragePrice float64    `json:"average_price"`
	LastSale     *SaleEvent `json:"last_sale,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Stale        bool       `json:"stale,omitempty"`
}

// LeaderboardEntry is one ranked address, enriched with a best-effort
// marketplace profile.
type LeaderboardEntry struct {
	Address  string `json:"address"`
	Username string `json:"username,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Count    int    `json:"count"`
}

// Leaderboard is the composed leaderboard view: top holders by card count,
// most active traders from recent sales, and holders of rare-trait cards.
type Leaderboard struct {
	TopHolders      []LeaderboardEntry `json:"top_holders"`
	ActiveTraders   []LeaderboardEntry `json:"active_traders"`
	RareCardHolders []LeaderboardEntry `json:"rare_card_holders"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Deck identifies one tracked collection: the URL slug it is served under,
// the contract address it lives at, and the marketplace collection slug used
// for upstream calls.
type Deck struct {
	Name       string `json:"name"`
	Slug       string `json:"slug"`
	Contract   string `json:"contract"`
	Collection string `json:"collection"`
}
