package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CacheService provides JSON-typed caching on top of a Store
type CacheService struct {
	store Store
}

// NewCacheService creates a new cache service
func NewCacheService(store Store) *CacheService {
	return &CacheService{store: store}
}

// CacheKeyType represents different types of cache keys
type CacheKeyType string

const (
	// CacheKeySnapshot is for relationship scan snapshots
	CacheKeySnapshot CacheKeyType = "snapshot"
	// CacheKeyPremium is for premium expiry per wallet
	CacheKeyPremium CacheKeyType = "premium"
	// CacheKeyStreak is for check-in streak state per wallet
	CacheKeyStreak CacheKeyType = "streak"
	// CacheKeyCheckIn marks a wallet's check-in for one UTC day
	CacheKeyCheckIn CacheKeyType = "checkin"
)

// GenerateCacheKey generates a cache key for a given type and parameters
// Format: <type>:<param1>:<param2>:...
func GenerateCacheKey(keyType CacheKeyType, params ...string) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, string(keyType))
	for _, param := range params {
		parts = append(parts, strings.ToLower(param))
	}
	return strings.Join(parts, ":")
}

// SnapshotKey generates the key for an account's snapshot
// Format: snapshot:<accountId>
func SnapshotKey(accountID uint64) string {
	return GenerateCacheKey(CacheKeySnapshot, fmt.Sprintf("%d", accountID))
}

// PremiumKey generates the key for a wallet's premium expiry
// Format: premium:<wallet>
func PremiumKey(wallet string) string {
	return GenerateCacheKey(CacheKeyPremium, wallet)
}

// StreakKey generates the key for a wallet's check-in streak
// Format: streak:<wallet>
func StreakKey(wallet string) string {
	return GenerateCacheKey(CacheKeyStreak, wallet)
}

// ErrCorruptValue is returned by Get when a stored value does not decode
var ErrCorruptValue = errors.New("cached value is corrupt")

// CheckInKey generates the key claimed by a wallet's check-in on one day
// Format: checkin:<wallet>:<yyyy-mm-dd>
func CheckInKey(wallet string, day time.Time) string {
	return GenerateCacheKey(CacheKeyCheckIn, wallet, day.UTC().Format("2006-01-02"))
}

// Claim atomically creates key and reports false when it already exists
func (c *CacheService) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	claimed, err := c.store.SetNX(ctx, key, "1", ttl)
	if err != nil {
		return false, fmt.Errorf("failed to claim key: %w", err)
	}
	return claimed, nil
}

// SetWithTTL serializes value to JSON and stores it
func (c *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return c.store.Set(ctx, key, string(data), ttl)
}

// Get retrieves a value from cache and deserializes it into dest.
// A cache miss returns false with a nil error.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, found, err := c.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}
	if !found {
		return false, nil
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorruptValue, err)
	}

	return true, nil
}

// Invalidate removes one or more keys from cache
func (c *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.store.Del(ctx, keys...)
}
