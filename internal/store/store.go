package store

import (
	"context"
	"time"

	"github.com/wildcard-labs/deck-indexer/internal/domain"
	"github.com/wildcard-labs/deck-indexer/internal/store/schema"
)

// Store defines the interface for mirror-store operations
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore
type Store interface {
	// ReplaceListings wholesale-replaces the listings for a contract:
	// delete-by-contract then bulk insert. The two steps are not
	// transactional; readers may observe a brief partial window.
	ReplaceListings(ctx context.Context, contract string, listings []domain.Listing) error

	// GetListingsByContract returns the current listings for a contract
	GetListingsByContract(ctx context.Context, contract string) ([]domain.Listing, error)

	// DeleteNFTsByContract removes the NFT mirror for a contract ahead of a
	// fresh streaming sync
	DeleteNFTsByContract(ctx context.Context, contract string) error

	// InsertNFTs inserts one fetched page of NFTs for a contract
	InsertNFTs(ctx context.Context, contract string, nfts []domain.NFT) error

	// GetNFTsByContract returns the mirrored NFT snapshots for a contract
	GetNFTsByContract(ctx context.Context, contract string) ([]domain.NFT, error)

	// GetDeckCache returns the aggregate record for a collection, or nil
	// when none exists yet
	GetDeckCache(ctx context.Context, collection string) (*schema.DeckCache, error)

	// UpsertDeckCacheStats creates or updates the rolled stats of the
	// collection's cache record, leaving holders/leaderboard untouched
	UpsertDeckCacheStats(ctx context.Context, stats *domain.CollectionStats) error

	// UpsertDeckCacheHolders creates or updates the holder aggregate of the
	// collection's cache record
	UpsertDeckCacheHolders(ctx context.Context, collection string, holders *domain.HolderAggregate, at time.Time) error

	// UpsertDeckCacheLeaderboard creates or updates the leaderboard of the
	// collection's cache record
	UpsertDeckCacheLeaderboard(ctx context.Context, collection string, leaderboard *domain.Leaderboard, at time.Time) error

	// ListQueueEntries returns all queue entries in FIFO order
	ListQueueEntries(ctx context.Context) ([]schema.QueueEntry, error)

	// GetClaimedQueueEntry returns the entry holding a non-null claim hash,
	// or nil when no job is in flight
	GetClaimedQueueEntry(ctx context.Context) (*schema.QueueEntry, error)

	// InsertQueueEntry appends a queue entry
	InsertQueueEntry(ctx context.Context, entry *schema.QueueEntry) error

	// ClaimQueueEntry sets the claim hash on an existing queued entry
	ClaimQueueEntry(ctx context.Context, id uint64, hash string) error

	// ReleaseQueueEntry nulls the claim hash on an entry, returning it to
	// the unclaimed queue
	ReleaseQueueEntry(ctx context.Context, id uint64) error

	// DeleteQueueEntry removes the queue entry for a contract
	DeleteQueueEntry(ctx context.Context, contract string) error

	// DeleteAllQueueEntries abandons the whole queue
	DeleteAllQueueEntries(ctx context.Context) error
}
