package schema

import (
	"time"

	"gorm.io/datatypes"
)

// Listing mirrors one current sell-side offer from the marketplace.
// Rows are bulk-replaced per contract on every full refresh; a listing is
// never updated in place.
type Listing struct {
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Contract is the lowercased NFT contract address this listing targets
	Contract  string `gorm:"column:contract;index;not null"`
	OrderHash string `gorm:"column:order_hash"`
	// PriceValue is an integer string in the smallest currency unit
	PriceValue    string `gorm:"column:price_value;not null"`
	PriceCurrency string `gorm:"column:price_currency"`
	PriceDecimals int    `gorm:"column:price_decimals"`
	// Offers is the JSON list of (token, identifierOrCriteria) pairs, both
	// lowercased before storage
	Offers    datatypes.JSON `gorm:"column:offers;type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (Listing) TableName() string {
	return "listings"
}
