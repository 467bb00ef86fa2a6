package opensea

import (
	"strings"

	"github.com/wildcard-labs/deck-indexer/internal/domain"
)

// CollectionStats is the response from the collection stats endpoint
type CollectionStats struct {
	Total StatsTotal `json:"total"`
}

// StatsTotal holds the rolled-up interval stats for a collection
type StatsTotal struct {
	Volume       float64 `json:"volume"`
	NumOwners    int     `json:"num_owners"`
	FloorPrice   float64 `json:"floor_price"`
	Sales        int     `json:"sales"`
	AveragePrice float64 `json:"average_price"`
}

// Collection is the response from the collection metadata endpoint
type Collection struct {
	Name        string `json:"name"`
	TotalSupply int    `json:"total_supply"`
}

// Account is a marketplace profile. Lookups are best-effort and never fatal.
type Account struct {
	Address         string `json:"address"`
	Username        string `json:"username"`
	ProfileImageURL string `json:"profile_image_url"`
	Bio             string `json:"bio"`
}

// PageOptions control one page of a paginated endpoint. A zero Limit uses
// the endpoint's default; Next is the upstream-provided cursor.
type PageOptions struct {
	Limit int
	Next  string
}

// EventOptions control the collection event feed query
type EventOptions struct {
	Limit     int
	EventType string
}

// ListingsPage is one page of best listings plus the pagination cursor
type ListingsPage struct {
	Listings []domain.Listing
	Next     string
}

// NFTsPage is one page of collection NFTs (no owner or trait detail yet)
// plus the pagination cursor
type NFTsPage struct {
	NFTs []domain.NFT
	Next string
}

// wireListing mirrors the upstream best-listings shape before it is
// flattened into domain.Listing
type wireListing struct {
	OrderHash string `json:"order_hash"`
	Price     struct {
		Current struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
			Decimals int    `json:"decimals"`
		} `json:"current"`
	} `json:"price"`
	ProtocolData struct {
		Parameters struct {
			Offer []domain.Offer `json:"offer"`
		} `json:"parameters"`
	} `json:"protocol_data"`
}

type listingsResponse struct {
	Listings []wireListing `json:"listings"`
	Next     string        `json:"next"`
}

type nftsResponse struct {
	NFTs []domain.NFT `json:"nfts"`
	Next string       `json:"next"`
}

type nftResponse struct {
	NFT domain.NFT `json:"nft"`
}

type wireEvent struct {
	EventType      string `json:"event_type"`
	EventTimestamp int64  `json:"event_timestamp"`
	Seller         string `json:"seller"`
	Buyer          string `json:"buyer"`
	Quantity       int    `json:"quantity"`
	Payment        struct {
		Quantity string `json:"quantity"`
		Symbol   string `json:"symbol"`
	} `json:"payment"`
}

type eventsResponse struct {
	AssetEvents []wireEvent `json:"asset_events"`
	Next        string      `json:"next"`
}

// toDomain flattens a wire listing into the normalized shape. Offer token
// contracts and identifiers are lowercased so lookups by contract address
// are case-insensitive.
func (w wireListing) toDomain() domain.Listing {
	l := domain.Listing{
		OrderHash: w.OrderHash,
		Price: domain.ListingPrice{
			Value:    w.Price.Current.Value,
			Currency: w.Price.Current.Currency,
			Decimals: w.Price.Current.Decimals,
		},
	}
	for _, o := range w.ProtocolData.Parameters.Offer {
		l.Offers = append(l.Offers, domain.Offer{
			Token:                strings.ToLower(o.Token),
			IdentifierOrCriteria: strings.ToLower(o.IdentifierOrCriteria),
		})
	}
	return l
}

func (e wireEvent) toDomain() domain.SaleEvent {
	return domain.SaleEvent{
		EventType:      e.EventType,
		EventTimestamp: e.EventTimestamp,
		Seller:         e.Seller,
		Buyer:          e.Buyer,
		Quantity:       e.Quantity,
		PaymentAmount:  e.Payment.Quantity,
		PaymentSymbol:  e.Payment.Symbol,
	}
}
