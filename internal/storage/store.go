package storage

import (
	"context"
	"time"
)

// Store is the key-value contract the gating layer persists through.
// A zero ttl means the key never expires.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// SetNX sets key only if it does not exist and reports whether it did
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}
