package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wildcard-labs/deck-indexer/internal/domain"
	"github.com/wildcard-labs/deck-indexer/internal/store/schema"
)

var (
	testDB      *gorm.DB
	pgContainer *postgres.PostgresContainer
)

// TestMain sets up the test database before running tests
func TestMain(m *testing.M) {
	ctx := context.Background()

	// Check if we should use an external database (for CI or local development)
	dbHost := os.Getenv("TEST_DB_HOST")
	dbPort := os.Getenv("TEST_DB_PORT")
	dbUser := os.Getenv("TEST_DB_USER")
	dbPassword := os.Getenv("TEST_DB_PASSWORD")
	dbName := os.Getenv("TEST_DB_NAME")

	var dsn string
	var err error

	if dbHost != "" {
		// Use external database
		if dbPort == "" {
			dbPort = "5432"
		}
		if dbUser == "" {
			dbUser = "postgres"
		}
		if dbPassword == "" {
			dbPassword = "postgres"
		}
		if dbName == "" {
			dbName = "test_db"
		}

		dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			dbHost, dbPort, dbUser, dbPassword, dbName)

		fmt.Printf("Using external database: %s:%s/%s\n", dbHost, dbPort, dbName)
	} else {
		// Start a PostgreSQL container for testing
		pgContainer, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("test_db"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			fmt.Printf("Failed to start PostgreSQL container: %v\n", err)
			os.Exit(1)
		}

		dsn, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			fmt.Printf("Failed to get connection string: %v\n", err)
			terminateContainer(ctx)
			os.Exit(1)
		}

		fmt.Printf("Started PostgreSQL container\n")
	}

	// Connect to the database
	testDB, err = gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	// Initialize the database schema
	if err := AutoMigrate(testDB); err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		terminateContainer(ctx)
		os.Exit(1)
	}

	// Run tests
	code := m.Run()

	// Cleanup
	terminateContainer(ctx)
	os.Exit(code)
}

func terminateContainer(ctx context.Context) {
	if pgContainer != nil {
		if err := pgContainer.Terminate(ctx); err != nil {
			fmt.Printf("Failed to terminate PostgreSQL container: %v\n", err)
		}
	}
}

// cleanTables truncates all mirror tables between tests
func cleanTables(t *testing.T) {
	t.Helper()
	for _, table := range []string{"listings", "nfts", "deck_caches", "queue_entries", "key_value_store"} {
		require.NoError(t, testDB.Exec("TRUNCATE TABLE "+table).Error)
	}
}

func testListing(orderHash, token, id string) domain.Listing {
	return domain.Listing{
		OrderHash: orderHash,
		Price: domain.ListingPrice{
			Value:    "1000000000000000000",
			Currency: "ETH",
			Decimals: 18,
		},
		Offers: []domain.Offer{{Token: token, IdentifierOrCriteria: id}},
	}
}

func testNFT(identifier, owner string) domain.NFT {
	return domain.NFT{
		Identifier:    identifier,
		TokenStandard: "erc721",
		Name:          "Card " + identifier,
		Traits: []domain.Trait{
			{TraitType: "Suit", Value: "Spades"},
			{TraitType: "Value", Value: "Ace"},
		},
		Owners: []domain.Owner{{Address: owner, Quantity: 1}},
	}
}

func TestReplaceListings(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	s := NewPGStore(testDB)

	require.NoError(t, s.ReplaceListings(ctx, "0xABC", []domain.Listing{
		testListing("0x1", "0xabc", "1"),
		testListing("0x2", "0xabc", "2"),
	}))

	// Contract lookup is lowercased on both write and read.
	listings, err := s.GetListingsByContract(ctx, "0xAbC")
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "0x1", listings[0].OrderHash)
	require.Len(t, listings[0].Offers, 1)
	assert.Equal(t, "0xabc", listings[0].Offers[0].Token)

	// Replacement is wholesale, not additive.
	require.NoError(t, s.ReplaceListings(ctx, "0xabc", []domain.Listing{
		testListing("0x3", "0xabc", "3"),
	}))
	listings, err = s.GetListingsByContract(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "0x3", listings[0].OrderHash)

	// Replacing with an empty set clears the contract.
	require.NoError(t, s.ReplaceListings(ctx, "0xabc", nil))
	listings, err = s.GetListingsByContract(ctx, "0xabc")
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestNFTRoundtrip(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	s := NewPGStore(testDB)

	require.NoError(t, s.InsertNFTs(ctx, "0xabc", []domain.NFT{
		testNFT("1", "0xaaa"),
		testNFT("2", "0xbbb"),
	}))
	require.NoError(t, s.InsertNFTs(ctx, "0xdef", []domain.NFT{
		testNFT("9", "0xccc"),
	}))

	nfts, err := s.GetNFTsByContract(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, nfts, 2)
	assert.Equal(t, "1", nfts[0].Identifier)
	require.Len(t, nfts[0].Traits, 2)
	assert.Equal(t, "Suit", nfts[0].Traits[0].TraitType)
	require.Len(t, nfts[0].Owners, 1)
	assert.Equal(t, "0xaaa", nfts[0].Owners[0].Address)

	// Deletion is scoped to the contract.
	require.NoError(t, s.DeleteNFTsByContract(ctx, "0xabc"))
	nfts, err = s.GetNFTsByContract(ctx, "0xabc")
	require.NoError(t, err)
	assert.Empty(t, nfts)

	nfts, err = s.GetNFTsByContract(ctx, "0xdef")
	require.NoError(t, err)
	assert.Len(t, nfts, 1)
}

func TestDeckCacheUpserts(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	s := NewPGStore(testDB)

	cache, err := s.GetDeckCache(ctx, "winds-of-change")
	require.NoError(t, err)
	assert.Nil(t, cache)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.UpsertDeckCacheStats(ctx, &domain.CollectionStats{
		Collection: "winds-of-change",
		Volume:     1000.5,
		NumOwners:  500,
		LastSale:   &domain.SaleEvent{Buyer: "0xbuyer"},
		UpdatedAt:  now,
	}))

	holderAgg := &domain.HolderAggregate{FullDecks: []string{"0xaaa"}}
	require.NoError(t, s.UpsertDeckCacheHolders(ctx, "winds-of-change", holderAgg, now))

	lb := &domain.Leaderboard{
		TopHolders: []domain.LeaderboardEntry{{Address: "0xaaa", Count: 52}},
		UpdatedAt:  now,
	}
	require.NoError(t, s.UpsertDeckCacheLeaderboard(ctx, "winds-of-change", lb, now))

	// All three sections coexist on the one record.
	cache, err = s.GetDeckCache(ctx, "winds-of-change")
	require.NoError(t, err)
	require.NotNil(t, cache)
	assert.Equal(t, 1000.5, cache.Volume)
	assert.NotEmpty(t, cache.Holders)
	assert.NotEmpty(t, cache.Leaderboard)
	require.NotNil(t, cache.HoldersUpdatedAt)
	require.NotNil(t, cache.LeaderboardUpdatedAt)

	// A stats upsert leaves holders and leaderboard untouched.
	require.NoError(t, s.UpsertDeckCacheStats(ctx, &domain.CollectionStats{
		Collection: "winds-of-change",
		Volume:     2000,
		UpdatedAt:  now.Add(time.Hour),
	}))
	cache, err = s.GetDeckCache(ctx, "winds-of-change")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, cache.Volume)
	assert.NotEmpty(t, cache.Holders)
	assert.NotEmpty(t, cache.Leaderboard)
}

func TestQueueOperations(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	s := NewPGStore(testDB)

	claimed, err := s.GetClaimedQueueEntry(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed)

	first := &schema.QueueEntry{Contract: "0xAAA", Name: "first-deck"}
	require.NoError(t, s.InsertQueueEntry(ctx, first))
	require.NoError(t, s.InsertQueueEntry(ctx, &schema.QueueEntry{Contract: "0xbbb", Name: "second-deck"}))

	// FIFO order by insertion.
	entries, err := s.ListQueueEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "0xaaa", entries[0].Contract)
	assert.Equal(t, "0xbbb", entries[1].Contract)
	assert.Nil(t, entries[0].Hash)

	// Claiming marks exactly one entry.
	require.NoError(t, s.ClaimQueueEntry(ctx, entries[0].ID, "claimhash"))
	claimed, err = s.GetClaimedQueueEntry(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "0xaaa", claimed.Contract)
	require.NotNil(t, claimed.Hash)
	assert.Equal(t, "claimhash", *claimed.Hash)

	// Releasing returns the entry to the unclaimed queue.
	require.NoError(t, s.ReleaseQueueEntry(ctx, entries[0].ID))
	claimed, err = s.GetClaimedQueueEntry(ctx)
	require.NoError(t, err)
	assert.Nil(t, claimed)

	// Released entries can be claimed again.
	require.NoError(t, s.ClaimQueueEntry(ctx, entries[0].ID, "claimhash2"))
	claimed, err = s.GetClaimedQueueEntry(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, "claimhash2", *claimed.Hash)

	// Deleting by contract removes only that entry.
	require.NoError(t, s.DeleteQueueEntry(ctx, "0xAAA"))
	entries, err = s.ListQueueEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0xbbb", entries[0].Contract)

	require.NoError(t, s.DeleteAllQueueEntries(ctx))
	entries, err = s.ListQueueEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSyncCursorStore(t *testing.T) {
	cleanTables(t)
	ctx := context.Background()
	cursors := NewSyncCursorStore(testDB)

	cursor, err := cursors.GetSyncCursor(ctx, "0xabc")
	require.NoError(t, err)
	assert.Empty(t, cursor)

	require.NoError(t, cursors.SetSyncCursor(ctx, "0xabc", "page2"))
	cursor, err = cursors.GetSyncCursor(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "page2", cursor)

	// Overwrite moves the cursor forward.
	require.NoError(t, cursors.SetSyncCursor(ctx, "0xabc", "page3"))
	cursor, err = cursors.GetSyncCursor(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "page3", cursor)

	// Cursors are per contract.
	cursor, err = cursors.GetSyncCursor(ctx, "0xdef")
	require.NoError(t, err)
	assert.Empty(t, cursor)

	require.NoError(t, cursors.ClearSyncCursor(ctx, "0xabc"))
	cursor, err = cursors.GetSyncCursor(ctx, "0xabc")
	require.NoError(t, err)
	assert.Empty(t, cursor)
}
