package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/wildcard-labs/deck-indexer/internal/store/schema"
)

// SyncCursorStore persists the pagination cursor of an in-progress NFT sync
// so a job interrupted by a platform execution-time limit can resume from
// the last successfully stored page instead of starting over.
type SyncCursorStore interface {
	// GetSyncCursor retrieves the persisted cursor for a contract, empty
	// when no sync is in progress
	GetSyncCursor(ctx context.Context, contract string) (string, error)
	// SetSyncCursor stores the cursor after a page has been stored
	SetSyncCursor(ctx context.Context, contract string, cursor string) error
	// ClearSyncCursor removes the cursor once a sync has fully drained
	ClearSyncCursor(ctx context.Context, contract string) error
}

type syncCursorStore struct {
	db *gorm.DB
}

// NewSyncCursorStore creates a new sync cursor store
func NewSyncCursorStore(db *gorm.DB) SyncCursorStore {
	return &syncCursorStore{db: db}
}

func cursorKey(contract string) string {
	return fmt.Sprintf("nft_sync_cursor:%s", contract)
}

// GetSyncCursor retrieves the persisted cursor for a contract
func (s *syncCursorStore) GetSyncCursor(ctx context.Context, contract string) (string, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", cursorKey(contract)).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get sync cursor: %w", err)
	}
	return kv.Value, nil
}

// SetSyncCursor stores the cursor after a page has been stored
func (s *syncCursorStore) SetSyncCursor(ctx context.Context, contract string, cursor string) error {
	kv := schema.KeyValueStore{
		Key:   cursorKey(contract),
		Value: cursor,
	}
	if err := s.db.WithContext(ctx).Save(&kv).Error; err != nil {
		return fmt.Errorf("failed to set sync cursor: %w", err)
	}
	return nil
}

// ClearSyncCursor removes the cursor once a sync has fully drained
func (s *syncCursorStore) ClearSyncCursor(ctx context.Context, contract string) error {
	err := s.db.WithContext(ctx).
		Where("key = ?", cursorKey(contract)).
		Delete(&schema.KeyValueStore{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear sync cursor: %w", err)
	}
	return nil
}
