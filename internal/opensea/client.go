package opensea

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/wildcard-labs/deck-indexer/internal/adapter"
	"github.com/wildcard-labs/deck-indexer/internal/domain"
)

const (
	// DEFAULT_RETRY_ATTEMPTS bounds how many times a retryable call is
	// re-issued after its first failure
	DEFAULT_RETRY_ATTEMPTS = 10
	// DEFAULT_RETRY_DELAY is the fixed sleep between retry attempts
	DEFAULT_RETRY_DELAY = 3 * time.Second

	LISTINGS_PAGE_LIMIT = 100
	NFTS_PAGE_LIMIT     = 200
	EVENTS_PAGE_LIMIT   = 50

	EVENT_TYPE_SALE = "sale"
)

var ErrNoAPIKey = errors.New("no API key provided")

// Config holds the OpenSea client configuration. AssetsAPIKey is a separate
// key for the listing/NFT-detail endpoint class and falls back to APIKey
// when unset.
type Config struct {
	APIURL        string
	APIKey        string
	AssetsAPIKey  string
	RetryAttempts uint64
	RetryDelay    time.Duration
	// DetailRequestsPerSecond paces single-NFT detail calls during full
	// collection walks. Zero disables pacing.
	DetailRequestsPerSecond float64
}

// Client defines the interface for OpenSea operations to enable mocking
//
//go:generate mockgen -source=client.go -destination=../mocks/opensea_client.go -package=mocks -mock_names=Client=MockOpenSeaClient
type Client interface {
	// GetCollectionStats fetches rolled-up collection stats. No retry: a
	// non-2xx fails immediately with the HTTP status in the error message.
	GetCollectionStats(ctx context.Context, name string) (*CollectionStats, error)

	// GetCollection fetches collection metadata. Same error contract as
	// GetCollectionStats.
	GetCollection(ctx context.Context, name string) (*Collection, error)

	// GetCollectionListings fetches one page of best listings using the
	// assets key.
	GetCollectionListings(ctx context.Context, name string, opts PageOptions) (*ListingsPage, error)

	// GetAllCollectionListings exhausts the best-listings pagination and
	// returns every listing with offer tokens/identifiers lowercased. A
	// failure on any page fails the whole call; there is no partial success.
	GetAllCollectionListings(ctx context.Context, name string) ([]domain.Listing, error)

	// GetUniqueListingsCount counts distinct token ids across all listing
	// pages. One token can carry multiple competing offers, so this differs
	// from the raw listing count.
	GetUniqueListingsCount(ctx context.Context, name string) (int, error)

	// GetCollectionNfts fetches one page of collection NFTs without owner
	// detail. Retries with a fixed delay; this endpoint is the one observed
	// to be rate-limited under load.
	GetCollectionNfts(ctx context.Context, name string, opts PageOptions) (*NFTsPage, error)

	// GetNft fetches full single-NFT detail including owners, with retry and
	// the assets key.
	GetNft(ctx context.Context, contractAddress, tokenID string) (*domain.NFT, error)

	// GetCollectionEvents fetches recent marketplace events.
	GetCollectionEvents(ctx context.Context, name string, opts EventOptions) ([]domain.SaleEvent, error)

	// GetLastSale returns the most recent sale event, or nil when there is
	// none.
	GetLastSale(ctx context.Context, name string) (*domain.SaleEvent, error)

	// GetAccount returns a marketplace profile, or nil on any error.
	// Profile lookups are best-effort and never fatal.
	GetAccount(ctx context.Context, address string) (*Account, error)

	// GetAllCollectionNftsWithOwners paginates the collection and issues a
	// detail call per NFT to obtain owners and traits. onProgress, when
	// non-nil, is invoked with the running count after each detail fetch.
	GetAllCollectionNftsWithOwners(ctx context.Context, name, contractAddress string, onProgress func(count int)) ([]domain.NFT, error)
}

// OpenSeaClient implements Client against the OpenSea v2 API
type OpenSeaClient struct {
	httpClient    adapter.HTTPClient
	json          adapter.JSON
	apiURL        string
	apiKey        string
	assetsAPIKey  string
	retryAttempts uint64
	retryDelay    time.Duration
	detailLimiter *rate.Limiter
}

// NewClient creates a new OpenSea client
func NewClient(httpClient adapter.HTTPClient, json adapter.JSON, cfg Config) Client {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DEFAULT_RETRY_DELAY
	}
	assetsKey := cfg.AssetsAPIKey
	if assetsKey == "" {
		assetsKey = cfg.APIKey
	}

	var limiter *rate.Limiter
	if cfg.DetailRequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.DetailRequestsPerSecond), 1)
	}

	return &OpenSeaClient{
		httpClient:    httpClient,
		json:          json,
		apiURL:        strings.TrimSuffix(cfg.APIURL, "/"),
		apiKey:        cfg.APIKey,
		assetsAPIKey:  assetsKey,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		detailLimiter: limiter,
	}
}

func (c *OpenSeaClient) headers(key string) map[string]string {
	return map[string]string{
		"X-API-KEY": key,
	}
}

// fetch performs a single authenticated GET with no retry
func (c *OpenSeaClient) fetch(ctx context.Context, url, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrNoAPIKey
	}
	return c.httpClient.GetBytes(ctx, url, c.headers(key))
}

// fetchWithRetry re-issues the request on any error, not only throttling:
// transient 5xx and network failures are as common as 429s against this
// upstream. Attempts are bounded by RetryAttempts with a fixed delay
// between them; exhaustion surfaces the last error.
func (c *OpenSeaClient) fetchWithRetry(ctx context.Context, url, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrNoAPIKey
	}

	var body []byte
	operation := func() error {
		b, err := c.httpClient.GetBytes(ctx, url, c.headers(key))
		if err != nil {
			return err
		}
		body = b
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), c.retryAttempts),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return body, nil
}

// GetCollectionStats fetches rolled-up collection stats
func (c *OpenSeaClient) GetCollectionStats(ctx context.Context, name string) (*CollectionStats, error) {
	u := fmt.Sprintf("%s/collections/%s/stats", c.apiURL, name)

	body, err := c.fetch(ctx, u, c.apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collection stats: %w", err)
	}

	var stats CollectionStats
	if err := c.json.Unmarshal(body, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection stats: %w", err)
	}
	return &stats, nil
}

// GetCollection fetches collection metadata
func (c *OpenSeaClient) GetCollection(ctx context.Context, name string) (*Collection, error) {
	u := fmt.Sprintf("%s/collections/%s", c.apiURL, name)

	body, err := c.fetch(ctx, u, c.apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collection: %w", err)
	}

	var collection Collection
	if err := c.json.Unmarshal(body, &collection); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection: %w", err)
	}
	return &collection, nil
}

// GetCollectionListings fetches one page of best listings
func (c *OpenSeaClient) GetCollectionListings(ctx context.Context, name string, opts PageOptions) (*ListingsPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = LISTINGS_PAGE_LIMIT
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if opts.Next != "" {
		q.Set("next", opts.Next)
	}
	u := fmt.Sprintf("%s/listings/collection/%s/best?%s", c.apiURL, name, q.Encode())

	body, err := c.fetch(ctx, u, c.assetsAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collection listings: %w", err)
	}

	var resp listingsResponse
	if err := c.json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection listings: %w", err)
	}

	page := &ListingsPage{Next: resp.Next}
	for _, w := range resp.Listings {
		page.Listings = append(page.Listings, w.toDomain())
	}
	return page, nil
}

// GetAllCollectionListings exhausts the best-listings pagination. The full
// set is buffered in memory deliberately: downstream consumers (unique
// listing counts, on-sale totals) need the complete set atomically.
func (c *OpenSeaClient) GetAllCollectionListings(ctx context.Context, name string) ([]domain.Listing, error) {
	var all []domain.Listing
	next := ""
	for {
		page, err := c.GetCollectionListings(ctx, name, PageOptions{Next: next})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Listings...)
		if page.Next == "" {
			return all, nil
		}
		next = page.Next
	}
}

// GetUniqueListingsCount counts distinct token ids across all listing pages
func (c *OpenSeaClient) GetUniqueListingsCount(ctx context.Context, name string) (int, error) {
	listings, err := c.GetAllCollectionListings(ctx, name)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{})
	for _, l := range listings {
		for _, o := range l.Offers {
			seen[o.Token+":"+o.IdentifierOrCriteria] = struct{}{}
		}
	}
	return len(seen), nil
}

// GetCollectionNfts fetches one page of collection NFTs
func (c *OpenSeaClient) GetCollectionNfts(ctx context.Context, name string, opts PageOptions) (*NFTsPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = NFTS_PAGE_LIMIT
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if opts.Next != "" {
		q.Set("next", opts.Next)
	}
	u := fmt.Sprintf("%s/collection/%s/nfts?%s", c.apiURL, name, q.Encode())

	body, err := c.fetchWithRetry(ctx, u, c.apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collection nfts: %w", err)
	}

	var resp nftsResponse
	if err := c.json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection nfts: %w", err)
	}
	return &NFTsPage{NFTs: resp.NFTs, Next: resp.Next}, nil
}

// GetNft fetches full single-NFT detail including owners
func (c *OpenSeaClient) GetNft(ctx context.Context, contractAddress, tokenID string) (*domain.NFT, error) {
	if c.detailLimiter != nil {
		if err := c.detailLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := fmt.Sprintf("%s/chain/ethereum/contract/%s/nfts/%s",
		c.apiURL, strings.ToLower(contractAddress), tokenID)

	body, err := c.fetchWithRetry(ctx, u, c.assetsAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nft %s/%s: %w", contractAddress, tokenID, err)
	}

	var resp nftResponse
	if err := c.json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal nft: %w", err)
	}
	return &resp.NFT, nil
}

// GetCollectionEvents fetches recent marketplace events
func (c *OpenSeaClient) GetCollectionEvents(ctx context.Context, name string, opts EventOptions) ([]domain.SaleEvent, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = EVENTS_PAGE_LIMIT
	}
	eventType := opts.EventType
	if eventType == "" {
		eventType = EVENT_TYPE_SALE
	}

	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("event_type", eventType)
	u := fmt.Sprintf("%s/events/collection/%s?%s", c.apiURL, name, q.Encode())

	body, err := c.fetch(ctx, u, c.apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collection events: %w", err)
	}

	var resp eventsResponse
	if err := c.json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal collection events: %w", err)
	}

	events := make([]domain.SaleEvent, 0, len(resp.AssetEvents))
	for _, e := range resp.AssetEvents {
		events = append(events, e.toDomain())
	}
	return events, nil
}

// GetLastSale returns the most recent sale event, or nil when there is none
func (c *OpenSeaClient) GetLastSale(ctx context.Context, name string) (*domain.SaleEvent, error) {
	events, err := c.GetCollectionEvents(ctx, name, EventOptions{Limit: 1, EventType: EVENT_TYPE_SALE})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// GetAccount returns a marketplace profile, or nil on any error
func (c *OpenSeaClient) GetAccount(ctx context.Context, address string) (*Account, error) {
	u := fmt.Sprintf("%s/accounts/%s", c.apiURL, strings.ToLower(address))

	body, err := c.fetch(ctx, u, c.apiKey)
	if err != nil {
		return nil, nil
	}

	var account Account
	if err := c.json.Unmarshal(body, &account); err != nil {
		return nil, nil
	}
	return &account, nil
}

// GetAllCollectionNftsWithOwners walks the whole collection and fetches full
// detail per NFT. Pages are requested strictly in upstream cursor order.
func (c *OpenSeaClient) GetAllCollectionNftsWithOwners(ctx context.Context, name, contractAddress string, onProgress func(count int)) ([]domain.NFT, error) {
	var all []domain.NFT
	next := ""
	for {
		page, err := c.GetCollectionNfts(ctx, name, PageOptions{Next: next})
		if err != nil {
			return nil, err
		}

		for _, n := range page.NFTs {
			detail, err := c.GetNft(ctx, contractAddress, n.Identifier)
			if err != nil {
				return nil, err
			}
			all = append(all, *detail)
			if onProgress != nil {
				onProgress(len(all))
			}
		}

		if page.Next == "" {
			return all, nil
		}
		next = page.Next
	}
}

// IsThrottled reports whether err is (or wraps) an HTTP 429 from the
// upstream.
func IsThrottled(err error) bool {
	var statusErr *adapter.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 429
	}
	return false
}
