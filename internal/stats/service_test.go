package stats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/wildcard-labs/deck-indexer/internal/adapter"
	"github.com/wildcard-labs/deck-indexer/internal/domain"
	"github.com/wildcard-labs/deck-indexer/internal/logger"
	"github.com/wildcard-labs/deck-indexer/internal/opensea"
	"github.com/wildcard-labs/deck-indexer/internal/store/schema"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: true}); err != nil {
		panic(err)
	}
	m.Run()
}

var testDeck = domain.Deck{
	Name:       "Winds of Change",
	Slug:       "winds",
	Contract:   "0xabc",
	Collection: "winds-of-change",
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time                       { return c.now }
func (c *fakeClock) Since(t time.Time) time.Duration      { return c.now.Sub(t) }
func (c *fakeClock) Sleep(time.Duration)                  {}
func (c *fakeClock) After(time.Duration) <-chan time.Time { return nil }

var _ adapter.Clock = (*fakeClock)(nil)

// fakeStore is an in-memory stats.Store recording upserts
type fakeStore struct {
	cache *schema.DeckCache
	nfts  []domain.NFT

	cacheErr          error
	statsUpserts      []*domain.CollectionStats
	holderUpserts     int
	leaderboardWrites int
}

func (s *fakeStore) GetDeckCache(context.Context, string) (*schema.DeckCache, error) {
	if s.cacheErr != nil {
		return nil, s.cacheErr
	}
	return s.cache, nil
}

func (s *fakeStore) UpsertDeckCacheStats(_ context.Context, stats *domain.CollectionStats) error {
	s.statsUpserts = append(s.statsUpserts, stats)
	return nil
}

func (s *fakeStore) UpsertDeckCacheHolders(_ context.Context, _ string, _ *domain.HolderAggregate, _ time.Time) error {
	s.holderUpserts++
	return nil
}

func (s *fakeStore) UpsertDeckCacheLeaderboard(_ context.Context, _ string, _ *domain.Leaderboard, _ time.Time) error {
	s.leaderboardWrites++
	return nil
}

func (s *fakeStore) GetNFTsByContract(context.Context, string) ([]domain.NFT, error) {
	return s.nfts, nil
}

// fakeClient scripts the upstream responses
type fakeClient struct {
	stats       *opensea.CollectionStats
	statsErr    error
	collection  *opensea.Collection
	uniqueCount int
	lastSale    *domain.SaleEvent
	lastSaleErr error
	events      []domain.SaleEvent
	eventsErr   error
	accounts    map[string]*opensea.Account

	statsCalls int
}

func (c *fakeClient) GetCollectionStats(context.Context, string) (*opensea.CollectionStats, error) {
	c.statsCalls++
	return c.stats, c.statsErr
}

func (c *fakeClient) GetCollection(context.Context, string) (*opensea.Collection, error) {
	return c.collection, nil
}

func (c *fakeClient) GetUniqueListingsCount(context.Context, string) (int, error) {
	return c.uniqueCount, nil
}

func (c *fakeClient) GetLastSale(context.Context, string) (*domain.SaleEvent, error) {
	return c.lastSale, c.lastSaleErr
}

func (c *fakeClient) GetCollectionEvents(context.Context, string, opensea.EventOptions) ([]domain.SaleEvent, error) {
	return c.events, c.eventsErr
}

func (c *fakeClient) GetAccount(_ context.Context, address string) (*opensea.Account, error) {
	return c.accounts[address], nil
}

func healthyClient() *fakeClient {
	return &fakeClient{
		stats: &opensea.CollectionStats{
			Total: opensea.StatsTotal{
				Volume:       1000.5,
				NumOwners:    500,
				FloorPrice:   0.5,
				Sales:        120,
				AveragePrice: 0.8,
			},
		},
		collection:  &opensea.Collection{Name: "Winds of Change", TotalSupply: 540},
		uniqueCount: 12,
		lastSale:    &domain.SaleEvent{Buyer: "0xbuyer", PaymentSymbol: "ETH"},
	}
}

func TestGetCollectionStats(t *testing.T) {
	t.Run("fresh cache served without upstream calls", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1700000000, 0)}
		st := &fakeStore{cache: &schema.DeckCache{
			Collection: testDeck.Collection,
			Volume:     999,
			UpdatedAt:  clock.now.Add(-30 * time.Minute),
		}}
		client := healthyClient()
		svc := NewService(st, client, clock, time.Hour)

		stats, err := svc.GetCollectionStats(context.Background(), testDeck)
		require.NoError(t, err)

		assert.Equal(t, 999.0, stats.Volume)
		assert.False(t, stats.Stale)
		assert.Zero(t, client.statsCalls)
		assert.Empty(t, st.statsUpserts)
	})

	t.Run("expired cache triggers refresh and upsert", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1700000000, 0)}
		st := &fakeStore{cache: &schema.DeckCache{
			Collection: testDeck.Collection,
			Volume:     999,
			UpdatedAt:  clock.now.Add(-2 * time.Hour),
		}}
		client := healthyClient()
		svc := NewService(st, client, clock, time.Hour)

		stats, err := svc.GetCollectionStats(context.Background(), testDeck)
		require.NoError(t, err)

		assert.Equal(t, 1000.5, stats.Volume)
		assert.Equal(t, 500, stats.NumOwners)
		assert.Equal(t, 0.5, stats.FloorPrice)
		assert.Equal(t, 540, stats.TotalSupply)
		assert.Equal(t, 12, stats.OnSale)
		assert.Equal(t, 120, stats.SalesCount)
		require.NotNil(t, stats.LastSale)
		assert.Equal(t, "0xbuyer", stats.LastSale.Buyer)
		assert.False(t, stats.Stale)

		require.Len(t, st.statsUpserts, 1)
		assert.Equal(t, stats, st.statsUpserts[0])
	})

	t.Run("missing cache triggers refresh", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1700000000, 0)}
		st := &fakeStore{}
		svc := NewService(st, healthyClient(), clock, time.Hour)

		stats, err := svc.GetCollectionStats(context.Background(), testDeck)
		require.NoError(t, err)
		assert.Equal(t, 1000.5, stats.Volume)
		require.Len(t, st.statsUpserts, 1)
	})

	t.Run("failed refresh serves expired cache as stale", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1700000000, 0)}
		st := &fakeStore{cache: &schema.DeckCache{
			Collection: testDeck.Collection,
			Volume:     999,
			UpdatedAt:  clock.now.Add(-2 * time.Hour),
		}}
		client := healthyClient()
		client.statsErr = errors.New("upstream down")
		svc := NewService(st, client, clock, time.Hour)

		stats, err := svc.GetCollectionStats(context.Background(), testDeck)
		require.NoError(t, err)

		assert.Equal(t, 999.0, stats.Volume)
		assert.True(t, stats.Stale)
		assert.Empty(t, st.statsUpserts)
	})

	t.Run("failed refresh with no cache returns ErrNoCache", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1700000000, 0)}
		client := healthyClient()
		client.statsErr = errors.New("upstream down")
		svc := NewService(&fakeStore{}, client, clock, time.Hour)

		_, err := svc.GetCollectionStats(context.Background(), testDeck)
		assert.ErrorIs(t, err, domain.ErrNoCache)
	})

	t.Run("last sale failure does not fail the refresh", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(1700000000, 0)}
		st := &fakeStore{}
		client := healthyClient()
		client.lastSale = nil
		client.lastSaleErr = errors.New("events down")
		svc := NewService(st, client, clock, time.Hour)

		stats, err := svc.GetCollectionStats(context.Background(), testDeck)
		require.NoError(t, err)
		assert.Nil(t, stats.LastSale)
	})
}

func cardNFT(id, suit, value, owner string) domain.NFT {
	return domain.NFT{
		Identifier: id,
		Traits: []domain.Trait{
			{TraitType: "Suit", Value: suit},
			{TraitType: "Value", Value: value},
		},
		Owners: []domain.Owner{{Address: owner, Quantity: 1}},
	}
}

func TestGetHolders(t *testing.T) {
	t.Run("cached aggregate served verbatim", func(t *testing.T) {
		cached := domain.HolderAggregate{FullDecks: []string{"0xcached"}}
		b, err := json.Marshal(cached)
		require.NoError(t, err)

		st := &fakeStore{cache: &schema.DeckCache{
			Collection: testDeck.Collection,
			Holders:    datatypes.JSON(b),
		}}
		svc := NewService(st, healthyClient(), &fakeClock{now: time.Now()}, time.Hour)

		agg, err := svc.GetHolders(context.Background(), testDeck)
		require.NoError(t, err)
		assert.Equal(t, []string{"0xcached"}, agg.FullDecks)
	})

	t.Run("computed from the mirror without write-back", func(t *testing.T) {
		st := &fakeStore{nfts: []domain.NFT{
			cardNFT("1", "Spades", "Ace", "0xaaa"),
		}}
		svc := NewService(st, healthyClient(), &fakeClock{now: time.Now()}, time.Hour)

		agg, err := svc.GetHolders(context.Background(), testDeck)
		require.NoError(t, err)

		assert.Empty(t, agg.FullDecks)
		assert.NotNil(t, agg.Spades)
		assert.Zero(t, st.holderUpserts)
	})
}

func TestRefreshHolders(t *testing.T) {
	st := &fakeStore{nfts: []domain.NFT{
		cardNFT("1", "Spades", "Ace", "0xaaa"),
		cardNFT("2", "Spades", "2", "0xaaa"),
	}}
	svc := NewService(st, healthyClient(), &fakeClock{now: time.Now()}, time.Hour)

	agg, count, err := svc.RefreshHolders(context.Background(), testDeck)
	require.NoError(t, err)

	assert.Equal(t, 2, count)
	assert.NotNil(t, agg)
	assert.Equal(t, 1, st.holderUpserts)
}

func TestGetLeaderboard(t *testing.T) {
	t.Run("cached leaderboard served verbatim", func(t *testing.T) {
		cached := domain.Leaderboard{
			TopHolders: []domain.LeaderboardEntry{{Address: "0xcached", Count: 52}},
		}
		b, err := json.Marshal(cached)
		require.NoError(t, err)

		st := &fakeStore{cache: &schema.DeckCache{
			Collection:  testDeck.Collection,
			Leaderboard: datatypes.JSON(b),
		}}
		svc := NewService(st, healthyClient(), &fakeClock{now: time.Now()}, time.Hour)

		lb, err := svc.GetLeaderboard(context.Background(), testDeck)
		require.NoError(t, err)
		require.Len(t, lb.TopHolders, 1)
		assert.Equal(t, "0xcached", lb.TopHolders[0].Address)
		assert.Zero(t, st.leaderboardWrites)
	})

	t.Run("built from mirror and written back", func(t *testing.T) {
		st := &fakeStore{nfts: []domain.NFT{
			cardNFT("1", "Spades", "Ace", "0xaaa"),
			cardNFT("2", "Hearts", "King", "0xbbb"),
		}}
		client := healthyClient()
		client.events = []domain.SaleEvent{
			{Buyer: "0xbbb", Seller: "0xccc"},
			{Buyer: "0xbbb", Seller: "0xddd"},
		}
		client.accounts = map[string]*opensea.Account{
			"0xaaa": {Address: "0xaaa", Username: "ace-holder", ProfileImageURL: "https://img/a"},
		}
		svc := NewService(st, client, &fakeClock{now: time.Now()}, time.Hour)

		lb, err := svc.GetLeaderboard(context.Background(), testDeck)
		require.NoError(t, err)

		require.Len(t, lb.TopHolders, 2)
		assert.Equal(t, 1, st.leaderboardWrites)

		// 0xbbb traded twice, the others once.
		require.NotEmpty(t, lb.ActiveTraders)
		assert.Equal(t, "0xbbb", lb.ActiveTraders[0].Address)
		assert.Equal(t, 2, lb.ActiveTraders[0].Count)

		// Both cards are one-of-one designs.
		assert.Len(t, lb.RareCardHolders, 2)

		// Profile enrichment applied where a lookup succeeded.
		var aaa *domain.LeaderboardEntry
		for i := range lb.TopHolders {
			if lb.TopHolders[i].Address == "0xaaa" {
				aaa = &lb.TopHolders[i]
			}
		}
		require.NotNil(t, aaa)
		assert.Equal(t, "ace-holder", aaa.Username)
		assert.Equal(t, "https://img/a", aaa.ImageURL)
	})

	t.Run("event feed failure degrades to empty traders", func(t *testing.T) {
		st := &fakeStore{nfts: []domain.NFT{
			cardNFT("1", "Spades", "Ace", "0xaaa"),
		}}
		client := healthyClient()
		client.eventsErr = errors.New("events down")
		svc := NewService(st, client, &fakeClock{now: time.Now()}, time.Hour)

		lb, err := svc.GetLeaderboard(context.Background(), testDeck)
		require.NoError(t, err)
		assert.Empty(t, lb.ActiveTraders)
		assert.NotEmpty(t, lb.TopHolders)
	})
}
