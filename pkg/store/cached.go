package store

import (
	"context"
	"time"

	"github.com/matzehuels/mosaic/pkg/cache"
	"github.com/matzehuels/mosaic/pkg/post"
)

// DefaultSeenTTL bounds how long a seen marker lives in the cache.
const DefaultSeenTTL = 24 * time.Hour

// Cached answers Contains from a cache before asking the wrapped store.
// Markers are written on Insert and on every positive lookup. Cache errors
// fall through to the store.
type Cached struct {
	Store
	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration
}

// NewCached wraps s. A nil keyer uses [cache.DefaultKeyer]; a zero ttl uses
// [DefaultSeenTTL].
func NewCached(s Store, c cache.Cache, keyer cache.Keyer, ttl time.Duration) *Cached {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	return &Cached{Store: s, cache: c, keyer: keyer, ttl: ttl}
}

func (c *Cached) Contains(ctx context.Context, id string) (bool, error) {
	key := c.keyer.SeenKey(id)
	if _, hit, err := c.cache.Get(ctx, key); err == nil && hit {
		return true, nil
	}
	ok, err := c.Store.Contains(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	_ = c.cache.Set(ctx, key, []byte{1}, c.ttl)
	return true, nil
}

func (c *Cached) Insert(ctx context.Context, p post.Post) error {
	if err := c.Store.Insert(ctx, p); err != nil {
		return err
	}
	if id, ok := p.ID(); ok {
		_ = c.cache.Set(ctx, c.keyer.SeenKey(id), []byte{1}, c.ttl)
	}
	return nil
}

var _ Store = (*Cached)(nil)
