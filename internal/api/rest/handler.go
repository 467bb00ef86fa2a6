package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wildcard-labs/deck-indexer/internal/catalog"
	"github.com/wildcard-labs/deck-indexer/internal/domain"
	"github.com/wildcard-labs/deck-indexer/internal/jobs"
	"github.com/wildcard-labs/deck-indexer/internal/logger"
	"github.com/wildcard-labs/deck-indexer/internal/stats"
)

// Handler defines the interface for REST API handlers
//
//go:generate mockgen -source=handler.go -destination=../../mocks/api_handler.go -package=mocks -mock_names=Handler=MockAPIHandler
type Handler interface {
	// GetDeckStats returns the rolled collection stats for a deck
	// GET /api/v1/decks/:deck/stats
	GetDeckStats(c *gin.Context)

	// GetDeckHolders returns the holder aggregate for a deck
	// GET /api/v1/decks/:deck/holders
	GetDeckHolders(c *gin.Context)

	// GetDeckLeaderboard returns the composed leaderboard for a deck
	// GET /api/v1/decks/:deck/leaderboard
	GetDeckLeaderboard(c *gin.Context)

	// GetDeckCard resolves a card by suit and value and returns its holders
	// GET /api/v1/decks/:deck/cards/:suit/:value
	GetDeckCard(c *gin.Context)

	// TriggerDailyStats runs the daily stats refresh (requires the cron
	// shared secret)
	// POST /api/v1/jobs/daily-stats
	TriggerDailyStats(c *gin.Context)

	// TriggerWeeklyHolders runs the weekly re-ingest and holder refresh
	// (requires the cron shared secret)
	// POST /api/v1/jobs/weekly-holders
	TriggerWeeklyHolders(c *gin.Context)

	// HealthCheck returns the health status of the API
	// GET /health
	HealthCheck(c *gin.Context)
}

// handler implements the Handler interface
type handler struct {
	resolver catalog.ContractResolver
	cards    catalog.CardResolver
	stats    *stats.Service
	runner   *jobs.Runner
}

// NewHandler creates a new REST API handler
func NewHandler(resolver catalog.ContractResolver, cards catalog.CardResolver, statsSvc *stats.Service, runner *jobs.Runner) Handler {
	return &handler{
		resolver: resolver,
		cards:    cards,
		stats:    statsSvc,
		runner:   runner,
	}
}

// resolveDeck resolves the :deck path parameter, responding with an error
// when it does not name a registered deck
func (h *handler) resolveDeck(c *gin.Context) (*domain.Deck, bool) {
	slug := c.Param("deck")
	if slug == "" {
		respondBadRequest(c, "Deck slug is required")
		return nil, false
	}
	deck, err := h.resolver.GetDeckBySlug(slug)
	if err != nil {
		respondNotFound(c, "Unknown deck", slug)
		return nil, false
	}
	return deck, true
}

// GetDeckStats returns the rolled collection stats for a deck
func (h *handler) GetDeckStats(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}

	collectionStats, err := h.stats.GetCollectionStats(c.Request.Context(), *deck)
	if err != nil {
		if errors.Is(err, domain.ErrNoCache) {
			respondServiceError(c, "Stats are not available yet", deck.Slug)
			return
		}
		logger.ErrorCtx(c.Request.Context(), err, zap.String("deck", deck.Slug))
		respondServiceError(c, "Failed to load stats")
		return
	}

	c.JSON(http.StatusOK, collectionStats)
}

// GetDeckHolders returns the holder aggregate for a deck
func (h *handler) GetDeckHolders(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}

	aggregate, err := h.stats.GetHolders(c.Request.Context(), *deck)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("deck", deck.Slug))
		respondServiceError(c, "Failed to load holders")
		return
	}

	c.JSON(http.StatusOK, aggregate)
}

// GetDeckLeaderboard returns the composed leaderboard for a deck
func (h *handler) GetDeckLeaderboard(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}

	leaderboard, err := h.stats.GetLeaderboard(c.Request.Context(), *deck)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("deck", deck.Slug))
		respondServiceError(c, "Failed to load leaderboard")
		return
	}

	c.JSON(http.StatusOK, leaderboard)
}

// GetDeckCard resolves a card by its suit and value traits and returns the
// addresses currently holding it
func (h *handler) GetDeckCard(c *gin.Context) {
	deck, ok := h.resolveDeck(c)
	if !ok {
		return
	}

	card, err := h.cards.GetCardByTraits(deck.Slug, c.Param("suit"), c.Param("value"))
	if err != nil {
		respondNotFound(c, "Unknown card", c.Param("suit")+"/"+c.Param("value"))
		return
	}

	owners, err := h.stats.GetCardHolders(c.Request.Context(), *deck, *card)
	if err != nil {
		logger.ErrorCtx(c.Request.Context(), err, zap.String("deck", deck.Slug))
		respondServiceError(c, "Failed to load card holders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"card":    card,
		"holders": owners,
		"count":   len(owners),
	})
}

// TriggerDailyStats runs the daily stats refresh inline. The run outcome,
// success or not, is reported with a 200 so the calling scheduler records
// the invocation as delivered.
func (h *handler) TriggerDailyStats(c *gin.Context) {
	result := h.runner.RunDailyStats(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

// TriggerWeeklyHolders runs the weekly re-ingest and holder refresh inline
func (h *handler) TriggerWeeklyHolders(c *gin.Context) {
	result := h.runner.RunWeeklyHolders(c.Request.Context())
	c.JSON(http.StatusOK, result)
}

// HealthCheck returns the health status of the API
func (h *handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"decks":  len(h.resolver.Decks()),
	})
}
