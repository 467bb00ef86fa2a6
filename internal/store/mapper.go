package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/wildcard-labs/deck-indexer/internal/domain"
	"github.com/wildcard-labs/deck-indexer/internal/store/schema"
)

func listingToSchema(contract string, l domain.Listing) (*schema.Listing, error) {
	offers, err := json.Marshal(l.Offers)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal offers: %w", err)
	}
	return &schema.Listing{
		Contract:      strings.ToLower(contract),
		OrderHash:     l.OrderHash,
		PriceValue:    l.Price.Value,
		PriceCurrency: l.Price.Currency,
		PriceDecimals: l.Price.Decimals,
		Offers:        datatypes.JSON(offers),
	}, nil
}

func listingFromSchema(row schema.Listing) (domain.Listing, error) {
	l := domain.Listing{
		OrderHash: row.OrderHash,
		Price: domain.ListingPrice{
			Value:    row.PriceValue,
			Currency: row.PriceCurrency,
			Decimals: row.PriceDecimals,
		},
	}
	if len(row.Offers) > 0 {
		if err := json.Unmarshal(row.Offers, &l.Offers); err != nil {
			return domain.Listing{}, fmt.Errorf("failed to unmarshal offers: %w", err)
		}
	}
	return l, nil
}

func nftToSchema(contract string, n domain.NFT) (*schema.NFT, error) {
	traits, err := json.Marshal(n.Traits)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal traits: %w", err)
	}
	owners, err := json.Marshal(n.Owners)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal owners: %w", err)
	}
	return &schema.NFT{
		Contract:      strings.ToLower(contract),
		Identifier:    n.Identifier,
		TokenStandard: n.TokenStandard,
		Name:          n.Name,
		Description:   n.Description,
		Traits:        datatypes.JSON(traits),
		Owners:        datatypes.JSON(owners),
	}, nil
}

func nftFromSchema(row schema.NFT) (domain.NFT, error) {
	n := domain.NFT{
		Identifier:    row.Identifier,
		Contract:      row.Contract,
		TokenStandard: row.TokenStandard,
		Name:          row.Name,
		Description:   row.Description,
	}
	if len(row.Traits) > 0 {
		if err := json.Unmarshal(row.Traits, &n.Traits); err != nil {
			return domain.NFT{}, fmt.Errorf("failed to unmarshal traits: %w", err)
		}
	}
	if len(row.Owners) > 0 {
		if err := json.Unmarshal(row.Owners, &n.Owners); err != nil {
			return domain.NFT{}, fmt.Errorf("failed to unmarshal owners: %w", err)
		}
	}
	return n, nil
}
