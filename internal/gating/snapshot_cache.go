package gating

import (
	"context"
	"errors"

	"github.com/follow-scanner/internal/logging"
	"github.com/follow-scanner/internal/storage"
	"github.com/follow-scanner/internal/types"
)

// SnapshotRetention is how long a snapshot stays in the store. It outlives
// every freshness window so a failed rescan can still point at the last
// good result.
const SnapshotRetention = 14 * day

// SnapshotCache stores the latest scan snapshot per account
type SnapshotCache struct {
	cache *storage.CacheService
}

// NewSnapshotCache creates a snapshot cache on top of a key-value store
func NewSnapshotCache(store storage.Store) *SnapshotCache {
	return &SnapshotCache{cache: storage.NewCacheService(store)}
}

// Get returns the stored snapshot for an account, if any.
// A snapshot that no longer decodes is removed and reported as a miss.
func (c *SnapshotCache) Get(ctx context.Context, accountID uint64) (*types.Snapshot, bool, error) {
	key := storage.SnapshotKey(accountID)

	var snap types.Snapshot
	found, err := c.cache.Get(ctx, key, &snap)
	if errors.Is(err, storage.ErrCorruptValue) {
		logging.FromContext(ctx).WithError(err).WithField("accountId", accountID).Warn("Dropping unreadable snapshot")
		return nil, false, c.cache.Invalidate(ctx, key)
	}
	if err != nil || !found {
		return nil, false, err
	}
	return &snap, true, nil
}

// Save replaces the stored snapshot for the snapshot's account
func (c *SnapshotCache) Save(ctx context.Context, snap *types.Snapshot) error {
	return c.cache.SetWithTTL(ctx, storage.SnapshotKey(snap.AccountID), snap, SnapshotRetention)
}

