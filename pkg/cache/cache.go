// Package cache provides byte-oriented caches shared by the image fetcher,
// the feed client and the post store.
//
// Three backends implement [Cache]:
//   - [NullCache]: never stores anything (tests, --no-cache)
//   - [FileCache]: expiry-prefixed files under a directory (single host)
//   - [RedisCache]: a Redis server shared by several mosaic processes
//
// Keys are produced by a [Keyer] so every component agrees on namespaces.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values with an optional time-to-live.
//
// Get reports a miss as (nil, false, nil); an error means the backend itself
// failed. A ttl of zero stores the value without expiration.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
