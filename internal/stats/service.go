// Package stats serves the collection-level read views: rolled stats with a
// TTL cache, the holder aggregate, and the composed leaderboard. Reads
// prefer the cache; upstream refreshes happen inline only when the cache is
// missing or expired, and an expired record is still served when the
// refresh fails.
package stats

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/wildcard-labs/deck-indexer/internal/adapter"
	"github.com/wildcard-labs/deck-indexer/internal/domain"
	"github.com/wildcard-labs/deck-indexer/internal/holders"
	"github.com/wildcard-labs/deck-indexer/internal/logger"
	"github.com/wildcard-labs/deck-indexer/internal/opensea"
	"github.com/wildcard-labs/deck-indexer/internal/store/schema"
)

const (
	// DEFAULT_STATS_TTL is how long a cached stats record is served without
	// revalidation
	DEFAULT_STATS_TTL = time.Hour

	// LEADERBOARD_LIMIT caps each leaderboard section
	LEADERBOARD_LIMIT = 10

	// RARE_MINT_THRESHOLD is the maximum mint count for a card design to be
	// considered rare (1 means one-of-one designs only)
	RARE_MINT_THRESHOLD = 1

	// refreshWorkers bounds the concurrent upstream calls of one refresh
	refreshWorkers = 4
	// enrichWorkers bounds the concurrent profile lookups of one leaderboard
	// build
	enrichWorkers = 8
)

// Client is the slice of the upstream client the stats service needs
type Client interface {
	GetCollectionStats(ctx context.Context, name string) (*opensea.CollectionStats, error)
	GetCollection(ctx context.Context, name string) (*opensea.Collection, error)
	GetUniqueListingsCount(ctx context.Context, name string) (int, error)
	GetLastSale(ctx context.Context, name string) (*domain.SaleEvent, error)
	GetCollectionEvents(ctx context.Context, name string, opts opensea.EventOptions) ([]domain.SaleEvent, error)
	GetAccount(ctx context.Context, address string) (*opensea.Account, error)
}

// Store is the slice of the mirror store the stats service needs
type Store interface {
	GetDeckCache(ctx context.Context, collection string) (*schema.DeckCache, error)
	UpsertDeckCacheStats(ctx context.Context, stats *domain.CollectionStats) error
	UpsertDeckCacheHolders(ctx context.Context, collection string, holders *domain.HolderAggregate, at time.Time) error
	UpsertDeckCacheLeaderboard(ctx context.Context, collection string, leaderboard *domain.Leaderboard, at time.Time) error
	GetNFTsByContract(ctx context.Context, contract string) ([]domain.NFT, error)
}

// Service orchestrates the cached read views for tracked decks
type Service struct {
	store  Store
	client Client
	clock  adapter.Clock
	ttl    time.Duration
}

// NewService creates a new stats service. A non-positive ttl falls back to
// DEFAULT_STATS_TTL.
func NewService(st Store, client Client, clock adapter.Clock, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DEFAULT_STATS_TTL
	}
	return &Service{
		store:  st,
		client: client,
		clock:  clock,
		ttl:    ttl,
	}
}

// GetCollectionStats returns the rolled stats for a deck. A cache record
// younger than the TTL is served as-is. Otherwise the stats are refreshed
// from upstream and the cache updated; when the refresh fails and an
// expired record exists, that record is served with Stale set instead of
// surfacing the error.
func (s *Service) GetCollectionStats(ctx context.Context, deck domain.Deck) (*domain.CollectionStats, error) {
	cache, err := s.store.GetDeckCache(ctx, deck.Collection)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if cache != nil && now.Sub(cache.UpdatedAt) < s.ttl {
		return cacheToStats(cache)
	}

	fresh, err := s.RefreshStats(ctx, deck)
	if err != nil {
		if cache == nil {
			return nil, domain.ErrNoCache
		}
		logger.WarnCtx(ctx, "serving stale stats after refresh failure",
			zap.String("collection", deck.Collection),
			zap.Error(err),
		)
		stale, convErr := cacheToStats(cache)
		if convErr != nil {
			return nil, convErr
		}
		stale.Stale = true
		return stale, nil
	}
	return fresh, nil
}

// RefreshStats fetches the rolled stats from upstream and updates the cache
// record. The independent upstream calls run concurrently; stats,
// collection metadata and the on-sale count are all required, the last sale
// is best-effort.
func (s *Service) RefreshStats(ctx context.Context, deck domain.Deck) (*domain.CollectionStats, error) {
	var (
		osStats    *opensea.CollectionStats
		collection *opensea.Collection
		onSale     int
		lastSale   *domain.SaleEvent
	)

	pool := pond.NewPool(refreshWorkers)
	defer pool.StopAndWait()
	group := pool.NewGroup()

	group.SubmitErr(func() error {
		st, err := s.client.GetCollectionStats(ctx, deck.Collection)
		if err != nil {
			return err
		}
		osStats = st
		return nil
	})
	group.SubmitErr(func() error {
		c, err := s.client.GetCollection(ctx, deck.Collection)
		if err != nil {
			return err
		}
		collection = c
		return nil
	})
	group.SubmitErr(func() error {
		n, err := s.client.GetUniqueListingsCount(ctx, deck.Collection)
		if err != nil {
			return err
		}
		onSale = n
		return nil
	})
	group.SubmitErr(func() error {
		// Last sale is decoration; a miss never fails the refresh.
		sale, err := s.client.GetLastSale(ctx, deck.Collection)
		if err != nil {
			logger.WarnCtx(ctx, "failed to fetch last sale",
				zap.String("collection", deck.Collection),
				zap.Error(err),
			)
			return nil
		}
		lastSale = sale
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	stats := &domain.CollectionStats{
		Collection:   deck.Collection,
		Volume:       osStats.Total.Volume,
		FloorPrice:   osStats.Total.FloorPrice,
		NumOwners:    osStats.Total.NumOwners,
		TotalSupply:  collection.TotalSupply,
		OnSale:       onSale,
		SalesCount:   osStats.Total.Sales,
		AveragePrice: osStats.Total.AveragePrice,
		LastSale:     lastSale,
		UpdatedAt:    s.clock.Now(),
	}

	if err := s.store.UpsertDeckCacheStats(ctx, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetHolders returns the holder aggregate for a deck: the cached aggregate
// when one exists, otherwise a fresh computation over the mirrored NFTs.
// On-demand computations are not written back; only the weekly refresh
// updates the cached aggregate.
func (s *Service) GetHolders(ctx context.Context, deck domain.Deck) (*domain.HolderAggregate, error) {
	cache, err := s.store.GetDeckCache(ctx, deck.Collection)
	if err != nil {
		return nil, err
	}
	if cache != nil && len(cache.Holders) > 0 {
		var agg domain.HolderAggregate
		if err := json.Unmarshal(cache.Holders, &agg); err == nil {
			return &agg, nil
		}
		logger.WarnCtx(ctx, "discarding unreadable cached holders",
			zap.String("collection", deck.Collection),
		)
	}

	nfts, err := s.store.GetNFTsByContract(ctx, deck.Contract)
	if err != nil {
		return nil, err
	}
	return holders.Aggregate(nfts), nil
}

// MirroredNFTCount returns the number of NFTs currently mirrored for a
// deck. Used by the weekly job to report how far a failed ingest got.
func (s *Service) MirroredNFTCount(ctx context.Context, deck domain.Deck) (int, error) {
	nfts, err := s.store.GetNFTsByContract(ctx, deck.Contract)
	if err != nil {
		return 0, err
	}
	return len(nfts), nil
}

// GetCardHolders returns every address holding a given card design,
// computed from the mirrored NFTs. Always live; card-level reads are cheap
// enough not to cache.
func (s *Service) GetCardHolders(ctx context.Context, deck domain.Deck, card domain.Card) ([]string, error) {
	nfts, err := s.store.GetNFTsByContract(ctx, deck.Contract)
	if err != nil {
		return nil, err
	}
	return holders.CardHolders(holders.BuildHoldersMap(nfts), card), nil
}

// RefreshHolders recomputes the holder aggregate from the mirrored NFTs and
// writes it back to the cache record. Returns the aggregate and the number
// of NFTs it was computed over.
func (s *Service) RefreshHolders(ctx context.Context, deck domain.Deck) (*domain.HolderAggregate, int, error) {
	nfts, err := s.store.GetNFTsByContract(ctx, deck.Contract)
	if err != nil {
		return nil, 0, err
	}

	agg := holders.Aggregate(nfts)
	if err := s.store.UpsertDeckCacheHolders(ctx, deck.Collection, agg, s.clock.Now()); err != nil {
		return nil, 0, err
	}
	return agg, len(nfts), nil
}

// GetLeaderboard returns the composed leaderboard for a deck, serving the
// cached copy when one exists and building (and caching) it otherwise.
func (s *Service) GetLeaderboard(ctx context.Context, deck domain.Deck) (*domain.Leaderboard, error) {
	cache, err := s.store.GetDeckCache(ctx, deck.Collection)
	if err != nil {
		return nil, err
	}
	if cache != nil && len(cache.Leaderboard) > 0 {
		var lb domain.Leaderboard
		if err := json.Unmarshal(cache.Leaderboard, &lb); err == nil {
			return &lb, nil
		}
		logger.WarnCtx(ctx, "discarding unreadable cached leaderboard",
			zap.String("collection", deck.Collection),
		)
	}
	return s.RefreshLeaderboard(ctx, deck)
}

// RefreshLeaderboard rebuilds the leaderboard from the mirrored NFTs and
// the recent sale feed, enriches entries with marketplace profiles and
// writes the result back to the cache record. The sale feed and profile
// lookups are best-effort; only the mirror read and the final write can
// fail the build.
func (s *Service) RefreshLeaderboard(ctx context.Context, deck domain.Deck) (*domain.Leaderboard, error) {
	nfts, err := s.store.GetNFTsByContract(ctx, deck.Contract)
	if err != nil {
		return nil, err
	}

	m := holders.BuildHoldersMap(nfts)

	events, err := s.client.GetCollectionEvents(ctx, deck.Collection, opensea.EventOptions{})
	if err != nil {
		logger.WarnCtx(ctx, "failed to fetch sale events for leaderboard",
			zap.String("collection", deck.Collection),
			zap.Error(err),
		)
		events = nil
	}

	lb := &domain.Leaderboard{
		TopHolders:      holders.TopHolders(m, LEADERBOARD_LIMIT),
		ActiveTraders:   activeTraders(events, LEADERBOARD_LIMIT),
		RareCardHolders: holders.RareCardHolders(nfts, RARE_MINT_THRESHOLD, LEADERBOARD_LIMIT),
		UpdatedAt:       s.clock.Now(),
	}
	s.enrichEntries(ctx, lb)

	if err := s.store.UpsertDeckCacheLeaderboard(ctx, deck.Collection, lb, s.clock.Now()); err != nil {
		return nil, err
	}
	return lb, nil
}

// activeTraders ranks addresses by how many recent sales they took part in,
// counting buyer and seller sides separately.
func activeTraders(events []domain.SaleEvent, limit int) []domain.LeaderboardEntry {
	counts := make(map[string]int)
	for _, e := range events {
		if e.Buyer != "" {
			counts[strings.ToLower(e.Buyer)]++
		}
		if e.Seller != "" {
			counts[strings.ToLower(e.Seller)]++
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(counts))
	for addr, n := range counts {
		entries = append(entries, domain.LeaderboardEntry{Address: addr, Count: n})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Address < entries[j].Address
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// enrichEntries fills in usernames and profile images for every leaderboard
// entry. Each address is looked up once; failed lookups leave the entry
// bare.
func (s *Service) enrichEntries(ctx context.Context, lb *domain.Leaderboard) {
	addrs := make(map[string]struct{})
	sections := [][]domain.LeaderboardEntry{lb.TopHolders, lb.ActiveTraders, lb.RareCardHolders}
	for _, section := range sections {
		for _, e := range section {
			addrs[e.Address] = struct{}{}
		}
	}
	if len(addrs) == 0 {
		return
	}

	pool := pond.NewResultPool[*opensea.Account](enrichWorkers)
	defer pool.StopAndWait()

	tasks := make(map[string]pond.Result[*opensea.Account], len(addrs))
	for addr := range addrs {
		addr := addr
		tasks[addr] = pool.Submit(func() *opensea.Account {
			account, _ := s.client.GetAccount(ctx, addr)
			return account
		})
	}

	profiles := make(map[string]*opensea.Account, len(addrs))
	for addr, task := range tasks {
		if account, err := task.Wait(); err == nil && account != nil {
			profiles[addr] = account
		}
	}

	for _, section := range sections {
		for i := range section {
			if account, ok := profiles[section[i].Address]; ok {
				section[i].Username = account.Username
				section[i].ImageURL = account.ProfileImageURL
			}
		}
	}
}

// cacheToStats converts a cache row to the served stats view
func cacheToStats(cache *schema.DeckCache) (*domain.CollectionStats, error) {
	stats := &domain.CollectionStats{
		Collection:   cache.Collection,
		Volume:       cache.Volume,
		FloorPrice:   cache.FloorPrice,
		NumOwners:    cache.NumOwners,
		TotalSupply:  cache.TotalSupply,
		OnSale:       cache.OnSale,
		SalesCount:   cache.SalesCount,
		AveragePrice: cache.AveragePrice,
		UpdatedAt:    cache.UpdatedAt,
	}
	if len(cache.LastSale) > 0 {
		var sale domain.SaleEvent
		if err := json.Unmarshal(cache.LastSale, &sale); err != nil {
			return nil, err
		}
		stats.LastSale = &sale
	}
	return stats, nil
}
