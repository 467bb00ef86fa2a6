package sweeper

import (
	"context"
)

// Sweeper is a long-running refresh daemon. The sweeper binary runs one or
// more of these until it receives a shutdown signal.
//
//go:generate mockgen -source=sweeper.go -destination=../mocks/sweeper.go -package=mocks -mock_names=Sweeper=MockSweeper
type Sweeper interface {
	// Start runs the sweeper's schedule loop, blocking until the context is
	// canceled
	Start(ctx context.Context) error

	// Stop stops the schedules and waits for an in-progress run to finish,
	// up to the context's deadline
	Stop(ctx context.Context) error

	// Name identifies the sweeper in logs
	Name() string
}
