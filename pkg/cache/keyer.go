package cache

// Keyer builds cache keys for each kind of cached value.
type Keyer interface {
	// ImageKey addresses the raw bytes downloaded from an image URL.
	ImageKey(url string) string
	// FeedKey addresses a decoded feed API response.
	FeedKey(namespace, key string) string
	// SeenKey marks a feed post id as already persisted.
	SeenKey(postID string) string
}

// DefaultKeyer is the Keyer used when none is configured.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default Keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// ImageKey hashes the URL so arbitrary query strings stay safe as keys.
func (DefaultKeyer) ImageKey(url string) string {
	return hashKey("img", url)
}

// FeedKey returns "feed:<namespace>:<key>".
func (DefaultKeyer) FeedKey(namespace, key string) string {
	return "feed:" + namespace + ":" + key
}

// SeenKey returns "seen:<postID>".
func (DefaultKeyer) SeenKey(postID string) string {
	return "seen:" + postID
}

// ScopedKeyer wraps a Keyer with a prefix so several deployments can share
// one Redis database without colliding.
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "mosaic:staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// A nil inner keyer falls back to [DefaultKeyer].
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) ImageKey(url string) string { return k.prefix + k.inner.ImageKey(url) }

func (k *ScopedKeyer) FeedKey(namespace, key string) string {
	return k.prefix + k.inner.FeedKey(namespace, key)
}

func (k *ScopedKeyer) SeenKey(postID string) string { return k.prefix + k.inner.SeenKey(postID) }
