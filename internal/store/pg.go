package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wildcard-labs/deck-indexer/internal/domain"
	"github.com/wildcard-labs/deck-indexer/internal/store/schema"
)

// insertBatchSize keeps bulk inserts well under PostgreSQL's 65535
// parameter limit
const insertBatchSize = 500

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// AutoMigrate creates or updates the mirror tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Listing{},
		&schema.NFT{},
		&schema.DeckCache{},
		&schema.QueueEntry{},
		&schema.KeyValueStore{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// ReplaceListings wholesale-replaces the listings for a contract
func (s *pgStore) ReplaceListings(ctx context.Context, contract string, listings []domain.Listing) error {
	contract = strings.ToLower(contract)

	rows := make([]*schema.Listing, 0, len(listings))
	for _, l := range listings {
		row, err := listingToSchema(contract, l)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	// Delete-then-insert, kept adjacent so the partial window stays small.
	if err := s.db.WithContext(ctx).
		Where("contract = ?", contract).
		Delete(&schema.Listing{}).Error; err != nil {
		return fmt.Errorf("failed to delete listings: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert listings: %w", err)
	}
	return nil
}

// GetListingsByContract returns the current listings for a contract
func (s *pgStore) GetListingsByContract(ctx context.Context, contract string) ([]domain.Listing, error) {
	var rows []schema.Listing
	err := s.db.WithContext(ctx).
		Where("contract = ?", strings.ToLower(contract)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get listings: %w", err)
	}

	listings := make([]domain.Listing, 0, len(rows))
	for _, row := range rows {
		l, err := listingFromSchema(row)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// DeleteNFTsByContract removes the NFT mirror for a contract
func (s *pgStore) DeleteNFTsByContract(ctx context.Context, contract string) error {
	err := s.db.WithContext(ctx).
		Where("contract = ?", strings.ToLower(contract)).
		Delete(&schema.NFT{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete nfts: %w", err)
	}
	return nil
}

// InsertNFTs inserts one fetched page of NFTs for a contract
func (s *pgStore) InsertNFTs(ctx context.Context, contract string, nfts []domain.NFT) error {
	if len(nfts) == 0 {
		return nil
	}

	rows := make([]*schema.NFT, 0, len(nfts))
	for _, n := range nfts {
		row, err := nftToSchema(contract, n)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	if err := s.db.WithContext(ctx).CreateInBatches(rows, insertBatchSize).Error; err != nil {
		return fmt.Errorf("failed to insert nfts: %w", err)
	}
	return nil
}

// GetNFTsByContract returns the mirrored NFT snapshots for a contract
func (s *pgStore) GetNFTsByContract(ctx context.Context, contract string) ([]domain.NFT, error) {
	var rows []schema.NFT
	err := s.db.WithContext(ctx).
		Where("contract = ?", strings.ToLower(contract)).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get nfts: %w", err)
	}

	nfts := make([]domain.NFT, 0, len(rows))
	for _, row := range rows {
		n, err := nftFromSchema(row)
		if err != nil {
			return nil, err
		}
		nfts = append(nfts, n)
	}
	return nfts, nil
}

// GetDeckCache returns the aggregate record for a collection, or nil when
// none exists yet
func (s *pgStore) GetDeckCache(ctx context.Context, collection string) (*schema.DeckCache, error) {
	var cache schema.DeckCache
	err := s.db.WithContext(ctx).Where("collection = ?", collection).First(&cache).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get deck cache: %w", err)
	}
	return &cache, nil
}

// UpsertDeckCacheStats creates or updates the rolled stats of the
// collection's cache record. Holders and leaderboard columns are left
// untouched.
func (s *pgStore) UpsertDeckCacheStats(ctx context.Context, stats *domain.CollectionStats) error {
	var lastSale datatypes.JSON
	if stats.LastSale != nil {
		b, err := json.Marshal(stats.LastSale)
		if err != nil {
			return fmt.Errorf("failed to marshal last sale: %w", err)
		}
		lastSale = datatypes.JSON(b)
	}

	row := schema.DeckCache{
		Collection:   stats.Collection,
		Volume:       stats.Volume,
		FloorPrice:   stats.FloorPrice,
		NumOwners:    stats.NumOwners,
		TotalSupply:  stats.TotalSupply,
		OnSale:       stats.OnSale,
		SalesCount:   stats.SalesCount,
		AveragePrice: stats.AveragePrice,
		LastSale:     lastSale,
		UpdatedAt:    stats.UpdatedAt,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "collection"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"volume", "floor_price", "num_owners", "total_supply",
			"on_sale", "sales_count", "average_price", "last_sale", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert deck cache stats: %w", err)
	}
	return nil
}

// UpsertDeckCacheHolders creates or updates the holder aggregate of the
// collection's cache record
func (s *pgStore) UpsertDeckCacheHolders(ctx context.Context, collection string, holders *domain.HolderAggregate, at time.Time) error {
	b, err := json.Marshal(holders)
	if err != nil {
		return fmt.Errorf("failed to marshal holders: %w", err)
	}

	row := schema.DeckCache{
		Collection:       collection,
		UpdatedAt:        at,
		Holders:          datatypes.JSON(b),
		HoldersUpdatedAt: &at,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}},
		DoUpdates: clause.AssignmentColumns([]string{"holders", "holders_updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert deck cache holders: %w", err)
	}
	return nil
}

// UpsertDeckCacheLeaderboard creates or updates the leaderboard of the
// collection's cache record
func (s *pgStore) UpsertDeckCacheLeaderboard(ctx context.Context, collection string, leaderboard *domain.Leaderboard, at time.Time) error {
	b, err := json.Marshal(leaderboard)
	if err != nil {
		return fmt.Errorf("failed to marshal leaderboard: %w", err)
	}

	row := schema.DeckCache{
		Collection:           collection,
		UpdatedAt:            at,
		Leaderboard:          datatypes.JSON(b),
		LeaderboardUpdatedAt: &at,
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}},
		DoUpdates: clause.AssignmentColumns([]string{"leaderboard", "leaderboard_updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert deck cache leaderboard: %w", err)
	}
	return nil
}

// ListQueueEntries returns all queue entries in FIFO order
func (s *pgStore) ListQueueEntries(ctx context.Context) ([]schema.QueueEntry, error) {
	var entries []schema.QueueEntry
	if err := s.db.WithContext(ctx).Order("id").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	return entries, nil
}

// GetClaimedQueueEntry returns the entry holding a non-null claim hash, or
// nil when no job is in flight
func (s *pgStore) GetClaimedQueueEntry(ctx context.Context) (*schema.QueueEntry, error) {
	var entry schema.QueueEntry
	err := s.db.WithContext(ctx).Where("hash IS NOT NULL").Order("id").First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get claimed queue entry: %w", err)
	}
	return &entry, nil
}

// InsertQueueEntry appends a queue entry
func (s *pgStore) InsertQueueEntry(ctx context.Context, entry *schema.QueueEntry) error {
	entry.Contract = strings.ToLower(entry.Contract)
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to insert queue entry: %w", err)
	}
	return nil
}

// ClaimQueueEntry sets the claim hash on an existing queued entry
func (s *pgStore) ClaimQueueEntry(ctx context.Context, id uint64, hash string) error {
	err := s.db.WithContext(ctx).
		Model(&schema.QueueEntry{}).
		Where("id = ?", id).
		Update("hash", hash).Error
	if err != nil {
		return fmt.Errorf("failed to claim queue entry: %w", err)
	}
	return nil
}

// ReleaseQueueEntry nulls the claim hash on an entry, returning it to the
// unclaimed queue
func (s *pgStore) ReleaseQueueEntry(ctx context.Context, id uint64) error {
	err := s.db.WithContext(ctx).
		Model(&schema.QueueEntry{}).
		Where("id = ?", id).
		Update("hash", nil).Error
	if err != nil {
		return fmt.Errorf("failed to release queue entry: %w", err)
	}
	return nil
}

// DeleteQueueEntry removes the queue entry for a contract
func (s *pgStore) DeleteQueueEntry(ctx context.Context, contract string) error {
	err := s.db.WithContext(ctx).
		Where("contract = ?", strings.ToLower(contract)).
		Delete(&schema.QueueEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete queue entry: %w", err)
	}
	return nil
}

// DeleteAllQueueEntries abandons the whole queue
func (s *pgStore) DeleteAllQueueEntries(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Where("1 = 1").
		Delete(&schema.QueueEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete queue entries: %w", err)
	}
	return nil
}
