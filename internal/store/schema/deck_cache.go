package schema

import (
	"time"

	"gorm.io/datatypes"
)

// DeckCache is the singleton-per-collection aggregate record: rolled stats,
// the holder aggregate, and the leaderboard, each with its own freshness
// stamp. Created on first successful refresh, updated in place thereafter,
// never deleted in normal operation.
type DeckCache struct {
	// Collection is the marketplace collection slug
	Collection   string         `gorm:"column:collection;primaryKey;type:text"`
	Volume       float64        `gorm:"column:volume"`
	FloorPrice   float64        `gorm:"column:floor_price"`
	NumOwners    int            `gorm:"column:num_owners"`
	TotalSupply  int            `gorm:"column:total_supply"`
	OnSale       int            `gorm:"column:on_sale"`
	SalesCount   int            `gorm:"column:sales_count"`
	AveragePrice float64        `gorm:"column:average_price"`
	LastSale     datatypes.JSON `gorm:"column:last_sale;type:jsonb"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;not null"`

	Holders          datatypes.JSON `gorm:"column:holders;type:jsonb"`
	HoldersUpdatedAt *time.Time     `gorm:"column:holders_updated_at"`

	Leaderboard          datatypes.JSON `gorm:"column:leaderboard;type:jsonb"`
	LeaderboardUpdatedAt *time.Time     `gorm:"column:leaderboard_updated_at"`
}

func (DeckCache) TableName() string {
	return "deck_caches"
}
