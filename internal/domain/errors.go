package domain

import "errors"

var (
	// ErrDeckNotFound is returned when a deck is not present in the registry
	ErrDeckNotFound = errors.New("deck not found")

	// ErrCardNotFound is returned when suit and value traits do not name a
	// card in the standard deck
	ErrCardNotFound = errors.New("card not found")

	// ErrNoCache is returned when a live refresh fails and no cached record
	// exists to fall back on
	ErrNoCache = errors.New("no cached record available")

	// ErrStaleClaim is returned when a queue claim hash no longer matches the
	// active queue entry
	ErrStaleClaim = errors.New("stale queue claim")

	// ErrQueueAbandoned is returned when a refresh job exceeds its page
	// restart budget and deletes the whole queue
	ErrQueueAbandoned = errors.New("refresh queue abandoned")
)
