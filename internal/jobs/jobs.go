// Package jobs implements the scheduled refresh runs: the daily stats
// refresh and the weekly full re-ingest plus holder recomputation. A run
// always produces a Result, even on failure, so callers can report how far
// it got.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wildcard-labs/deck-indexer/internal/adapter"
	"github.com/wildcard-labs/deck-indexer/internal/catalog"
	"github.com/wildcard-labs/deck-indexer/internal/domain"
	"github.com/wildcard-labs/deck-indexer/internal/logger"
	"github.com/wildcard-labs/deck-indexer/internal/stats"
)

// Ingestor triggers a full collection re-ingest
type Ingestor interface {
	EnqueueAssetFetch(ctx context.Context, contract, name string) error
}

// Result reports the outcome of one job run. Counts reflect work completed
// before any failure, so a partially failed run still reports progress.
type Result struct {
	Job       string        `json:"job"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	Decks     int           `json:"decks"`
	Refreshed int           `json:"refreshed"`
	NFTs      int           `json:"nfts,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Runner executes the scheduled refresh jobs over every registered deck
type Runner struct {
	resolver catalog.ContractResolver
	stats    *stats.Service
	ingestor Ingestor
	clock    adapter.Clock
}

// NewRunner creates a new job runner
func NewRunner(resolver catalog.ContractResolver, statsSvc *stats.Service, ingestor Ingestor, clock adapter.Clock) *Runner {
	return &Runner{
		resolver: resolver,
		stats:    statsSvc,
		ingestor: ingestor,
		clock:    clock,
	}
}

// RunDailyStats refreshes the rolled stats of every registered deck. A
// failing deck stops the run; decks already refreshed stay refreshed and
// are counted in the result.
func (r *Runner) RunDailyStats(ctx context.Context) Result {
	start := r.clock.Now()
	decks := r.resolver.Decks()
	result := Result{Job: "daily-stats", Decks: len(decks)}

	for _, deck := range decks {
		if _, err := r.stats.RefreshStats(ctx, deck); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("collection", deck.Collection))
			result.Duration = r.clock.Since(start)
			result.Error = err.Error()
			return result
		}
		result.Refreshed++
		logger.InfoCtx(ctx, "stats refreshed", zap.String("collection", deck.Collection))
	}

	result.Success = true
	result.Duration = r.clock.Since(start)
	return result
}

// RunWeeklyHolders re-ingests every registered deck from upstream, then
// recomputes its holder aggregate and leaderboard. The NFT count in the
// result is the total number of NFTs the aggregates were computed over; on
// failure it still includes the NFTs fetched for the failing deck before
// the failure.
func (r *Runner) RunWeeklyHolders(ctx context.Context) Result {
	start := r.clock.Now()
	decks := r.resolver.Decks()
	result := Result{Job: "weekly-holders", Decks: len(decks)}

	for _, deck := range decks {
		if err := r.refreshDeckHolders(ctx, deck, &result); err != nil {
			logger.ErrorCtx(ctx, err, zap.String("collection", deck.Collection))
			result.Duration = r.clock.Since(start)
			result.Error = err.Error()
			return result
		}
		result.Refreshed++
	}

	result.Success = true
	result.Duration = r.clock.Since(start)
	return result
}

func (r *Runner) refreshDeckHolders(ctx context.Context, deck domain.Deck, result *Result) error {
	if err := r.ingestor.EnqueueAssetFetch(ctx, deck.Contract, deck.Collection); err != nil {
		r.addMirroredCount(ctx, deck, result)
		return err
	}

	agg, count, err := r.stats.RefreshHolders(ctx, deck)
	if err != nil {
		r.addMirroredCount(ctx, deck, result)
		return err
	}
	result.NFTs += count

	if _, err := r.stats.RefreshLeaderboard(ctx, deck); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "holders refreshed",
		zap.String("collection", deck.Collection),
		zap.Int("nfts", count),
		zap.Int("full_decks", len(agg.FullDecks)),
	)
	return nil
}

// addMirroredCount folds the deck's stored NFT count into the result. Pages
// are stored before the next is requested, so on a failed ingest the mirror
// count is the number of NFTs fetched before the failure.
func (r *Runner) addMirroredCount(ctx context.Context, deck domain.Deck, result *Result) {
	count, err := r.stats.MirroredNFTCount(ctx, deck)
	if err != nil {
		logger.WarnCtx(ctx, "failed to count mirrored nfts",
			zap.String("collection", deck.Collection),
			zap.Error(err),
		)
		return
	}
	result.NFTs += count
}
