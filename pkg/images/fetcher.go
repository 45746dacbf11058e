package images

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/mosaic/pkg/cache"
	"github.com/matzehuels/mosaic/pkg/errors"
	"github.com/matzehuels/mosaic/pkg/httputil"
)

// maxImageBytes caps a single download.
const maxImageBytes = 20 << 20

// Fetcher downloads remote images and scales them to tile size.
// Raw bytes are cached by URL, so the same picture requested at several tile
// sizes is downloaded once.
type Fetcher struct {
	http  *http.Client
	cache cache.Cache
	keyer cache.Keyer
	ttl   time.Duration
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) { f.http = c }
}

// WithKeyer sets the cache keyer.
func WithKeyer(k cache.Keyer) FetcherOption {
	return func(f *Fetcher) { f.keyer = k }
}

// NewFetcher creates a Fetcher. A nil cache disables caching.
func NewFetcher(c cache.Cache, ttl time.Duration, opts ...FetcherOption) *Fetcher {
	if c == nil {
		c = cache.NewNullCache()
	}
	f := &Fetcher{
		http:  httputil.NewClient(0),
		cache: c,
		keyer: cache.NewDefaultKeyer(),
		ttl:   ttl,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url, decodes it and fills it to exactly size.
//
// Transport failures are reported as ErrCodeNetwork, undecodable payloads
// as ErrCodeDecode.
func (f *Fetcher) Fetch(ctx context.Context, url string, size Size) (*Image, error) {
	if err := errors.ValidateURL(url); err != nil {
		return nil, err
	}
	data, err := f.download(ctx, url)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		_ = f.cache.Delete(ctx, f.keyer.ImageKey(url))
		return nil, err
	}
	return img.Resize(size), nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	key := f.keyer.ImageKey(url)
	if data, ok, _ := f.cache.Get(ctx, key); ok {
		return data, nil
	}

	var data []byte
	err := httputil.RetryWithBackoff(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := f.http.Do(req)
		if err != nil {
			return &httputil.RetryableError{Err: fmt.Errorf("%w: %v", httputil.ErrNetwork, err)}
		}
		defer resp.Body.Close()
		if err := httputil.CheckStatus(resp); err != nil {
			return err
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
		if err != nil {
			return &httputil.RetryableError{Err: fmt.Errorf("%w: %v", httputil.ErrNetwork, err)}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "fetch %s", url)
	}

	_ = f.cache.Set(ctx, key, data, f.ttl)
	return data, nil
}
