// Package ingest serializes full-collection refreshes behind a persisted
// single-flight queue. The claim hash on a queue entry is a cooperative
// advisory lock backed by the store, not a database-level mutex: two
// processes entering EnqueueAssetFetch near-simultaneously can both observe
// an empty queue and both start a refresh. That duplication is rare, cheap
// and idempotent, so the design accepts it instead of paying for a real
// distributed lock.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/wildcard-labs/deck-indexer/internal/adapter"
	"github.com/wildcard-labs/deck-indexer/internal/domain"
	"github.com/wildcard-labs/deck-indexer/internal/logger"
	"github.com/wildcard-labs/deck-indexer/internal/opensea"
	"github.com/wildcard-labs/deck-indexer/internal/store"
	"github.com/wildcard-labs/deck-indexer/internal/store/schema"
)

// MAX_PAGE_RESTARTS bounds how often the same page is restarted after
// non-throttle failures before the whole queue is abandoned. The abandon is
// a fail-safe against looping forever on a persistently broken upstream.
const MAX_PAGE_RESTARTS = 10

// Client is the slice of the upstream client the ingest queue needs
type Client interface {
	GetAllCollectionListings(ctx context.Context, name string) ([]domain.Listing, error)
	GetCollectionNfts(ctx context.Context, name string, opts opensea.PageOptions) (*opensea.NFTsPage, error)
	GetNft(ctx context.Context, contractAddress, tokenID string) (*domain.NFT, error)
}

// Store is the slice of the mirror store the ingest queue needs
type Store interface {
	ReplaceListings(ctx context.Context, contract string, listings []domain.Listing) error
	DeleteNFTsByContract(ctx context.Context, contract string) error
	InsertNFTs(ctx context.Context, contract string, nfts []domain.NFT) error
	ListQueueEntries(ctx context.Context) ([]schema.QueueEntry, error)
	GetClaimedQueueEntry(ctx context.Context) (*schema.QueueEntry, error)
	InsertQueueEntry(ctx context.Context, entry *schema.QueueEntry) error
	ClaimQueueEntry(ctx context.Context, id uint64, hash string) error
	ReleaseQueueEntry(ctx context.Context, id uint64) error
	DeleteQueueEntry(ctx context.Context, contract string) error
	DeleteAllQueueEntries(ctx context.Context) error
}

// Service runs single-flight collection refreshes
type Service struct {
	store   Store
	cursors store.SyncCursorStore
	client  Client
	clock   adapter.Clock
	// onSynced is invoked after a contract has been fully refreshed, so the
	// calling context can revalidate downstream content
	onSynced func(contract string)
}

// NewService creates a new ingest service. onSynced may be nil.
func NewService(st Store, cursors store.SyncCursorStore, client Client, clock adapter.Clock, onSynced func(contract string)) *Service {
	return &Service{
		store:    st,
		cursors:  cursors,
		client:   client,
		clock:    clock,
		onSynced: onSynced,
	}
}

func hasEntry(entries []schema.QueueEntry, contract, name string) bool {
	for _, e := range entries {
		if e.Contract == contract && e.Name == name {
			return true
		}
	}
	return false
}

// EnqueueAssetFetch requests a full refresh for a contract. When no job is
// in flight it claims one immediately, preferring the oldest queued request
// over the new one (FIFO fairness), and processes it to completion. When a
// job is in flight the request is queued unclaimed, unless the contract is
// already queued or in flight, in which case this is a no-op.
func (s *Service) EnqueueAssetFetch(ctx context.Context, contract, name string) error {
	contract = strings.ToLower(contract)

	entries, err := s.store.ListQueueEntries(ctx)
	if err != nil {
		return err
	}

	var claimed *schema.QueueEntry
	for i := range entries {
		if entries[i].Hash != nil {
			claimed = &entries[i]
			break
		}
	}

	if claimed != nil {
		if hasEntry(entries, contract, name) {
			return nil
		}
		return s.store.InsertQueueEntry(ctx, &schema.QueueEntry{Contract: contract, Name: name})
	}

	// No job in flight: mint a claim hash and start processing.
	hash := ulid.MustNewDefault(s.clock.Now()).String()

	var oldest *schema.QueueEntry
	for i := range entries {
		if entries[i].Hash == nil {
			oldest = &entries[i]
			break
		}
	}

	if oldest != nil {
		if err := s.store.ClaimQueueEntry(ctx, oldest.ID, hash); err != nil {
			return err
		}
		// The new request still needs a place in line unless it is the one
		// just claimed or already queued.
		if !hasEntry(entries, contract, name) {
			if err := s.store.InsertQueueEntry(ctx, &schema.QueueEntry{Contract: contract, Name: name}); err != nil {
				return err
			}
		}
	} else {
		entry := &schema.QueueEntry{Contract: contract, Name: name, Hash: &hash}
		if err := s.store.InsertQueueEntry(ctx, entry); err != nil {
			return err
		}
	}

	return s.ProcessAssetQueue(ctx, hash)
}

// ProcessAssetQueue runs the refresh job claimed under hash. On any failure
// short of a queue abandon the claim is released, so the entry returns to
// the unclaimed queue and a later enqueue re-drives the refresh; the
// persisted cursor keeps its resume point.
func (s *Service) ProcessAssetQueue(ctx context.Context, hash string) error {
	claimed, err := s.store.GetClaimedQueueEntry(ctx)
	if err != nil {
		return err
	}
	if claimed == nil || claimed.Hash == nil || *claimed.Hash != hash {
		// Another claim has superseded this one; guards against stale
		// callbacks re-running a finished job.
		return domain.ErrStaleClaim
	}

	if err := s.runClaimed(ctx, claimed); err != nil {
		if !errors.Is(err, domain.ErrQueueAbandoned) {
			if relErr := s.store.ReleaseQueueEntry(ctx, claimed.ID); relErr != nil {
				logger.ErrorCtx(ctx, relErr, zap.String("contract", claimed.Contract))
			} else {
				logger.WarnCtx(ctx, "refresh failed, claim released for retry",
					zap.String("contract", claimed.Contract),
					zap.Error(err),
				)
			}
		}
		return err
	}
	return nil
}

// runClaimed executes the refresh for a claimed entry: listings are replaced
// wholesale first (stale listings are worse than briefly missing ones, since
// they drive on-sale display), then NFTs are streamed page-by-page with full
// owner detail, each page stored before the next is requested. The
// pagination cursor is persisted after every page so an interrupted run
// resumes from the last stored page.
func (s *Service) runClaimed(ctx context.Context, claimed *schema.QueueEntry) error {
	contract, name := claimed.Contract, claimed.Name

	listings, err := s.client.GetAllCollectionListings(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to fetch listings for %s: %w", name, err)
	}
	if err := s.store.ReplaceListings(ctx, contract, listings); err != nil {
		return err
	}
	logger.InfoCtx(ctx, "listings replaced",
		zap.String("contract", contract),
		zap.Int("count", len(listings)),
	)

	cursor, err := s.cursors.GetSyncCursor(ctx, contract)
	if err != nil {
		return err
	}
	if cursor == "" {
		// Fresh sync; a non-empty cursor means we are resuming an
		// interrupted run and the already-stored pages stay.
		if err := s.store.DeleteNFTsByContract(ctx, contract); err != nil {
			return err
		}
	}

	restarts := 0
	synced := 0
	for {
		next, stored, err := s.syncPage(ctx, contract, name, cursor)
		if err != nil {
			if opensea.IsThrottled(err) {
				// Throttling is expected under load; retry silently without
				// consuming the restart budget.
				continue
			}
			restarts++
			logger.ErrorCtx(ctx, err,
				zap.String("contract", contract),
				zap.String("cursor", cursor),
				zap.Int("restarts", restarts),
			)
			if restarts >= MAX_PAGE_RESTARTS {
				if delErr := s.store.DeleteAllQueueEntries(ctx); delErr != nil {
					logger.ErrorCtx(ctx, delErr)
				}
				return fmt.Errorf("%w after %d page restarts: %v", domain.ErrQueueAbandoned, restarts, err)
			}
			continue
		}

		restarts = 0
		synced += stored
		if next == "" {
			break
		}
		cursor = next
	}

	if err := s.cursors.ClearSyncCursor(ctx, contract); err != nil {
		return err
	}
	if err := s.store.DeleteQueueEntry(ctx, contract); err != nil {
		return err
	}

	logger.InfoCtx(ctx, "collection refresh complete",
		zap.String("contract", contract),
		zap.String("collection", name),
		zap.Int("nfts", synced),
	)

	if s.onSynced != nil {
		s.onSynced(contract)
	}
	return nil
}

// syncPage fetches one page of NFTs, resolves full detail per token, stores
// the page and persists the cursor for the following one. Returns the next
// cursor ("" when the pagination is drained) and the number of NFTs stored.
func (s *Service) syncPage(ctx context.Context, contract, name, cursor string) (string, int, error) {
	page, err := s.client.GetCollectionNfts(ctx, name, opensea.PageOptions{Next: cursor})
	if err != nil {
		return "", 0, err
	}

	nfts := make([]domain.NFT, 0, len(page.NFTs))
	for _, n := range page.NFTs {
		if n.Identifier == "" {
			return "", 0, fmt.Errorf("unexpected nft shape in collection %s: missing identifier", name)
		}
		detail, err := s.client.GetNft(ctx, contract, n.Identifier)
		if err != nil {
			return "", 0, err
		}
		nfts = append(nfts, *detail)
	}

	if err := s.store.InsertNFTs(ctx, contract, nfts); err != nil {
		return "", 0, err
	}

	if page.Next != "" {
		if err := s.cursors.SetSyncCursor(ctx, contract, page.Next); err != nil {
			return "", 0, err
		}
	}
	return page.Next, len(nfts), nil
}
