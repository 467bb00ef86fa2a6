package schema

import (
	"time"

	"gorm.io/datatypes"
)

// NFT mirrors one token's ownership and trait snapshot. Rows are replaced
// per contract on every refresh cycle; during a streaming sync each page is
// inserted as soon as it has been fetched.
type NFT struct {
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	// Contract is the lowercased NFT contract address
	Contract string `gorm:"column:contract;index;not null"`
	// Identifier is the token id as reported by the marketplace
	Identifier    string `gorm:"column:identifier;not null"`
	TokenStandard string `gorm:"column:token_standard"`
	Name          string `gorm:"column:name"`
	Description   string `gorm:"column:description"`
	// Traits and Owners are JSON snapshots; an NFT with either empty is
	// excluded from all aggregation
	Traits    datatypes.JSON `gorm:"column:traits;type:jsonb"`
	Owners    datatypes.JSON `gorm:"column:owners;type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (NFT) TableName() string {
	return "nfts"
}
