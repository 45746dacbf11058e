package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/mosaic/pkg/cache"
	mosaicerrors "github.com/matzehuels/mosaic/pkg/errors"
	"github.com/matzehuels/mosaic/pkg/httputil"
)

// DefaultPostTTL is how long a resolved post stays cached. Feed posts are
// immutable, so this only bounds cache growth.
const DefaultPostTTL = 24 * time.Hour

// Item is a post reference as listed by a hashtag endpoint.
type Item struct {
	ID       string `json:"id"`
	ImageURL string `json:"image_url"`
	Hashtag  string `json:"hashtag"`
}

// PostInfo is the detail record of a single post.
type PostInfo struct {
	ID       string `json:"id"`
	UserName string `json:"user_name"`
	ImageURL string `json:"image_url"`
}

type listResponse struct {
	Res []Item `json:"res"`
}

// Source lists and resolves feed posts.
type Source interface {
	// Latest returns the most recent posts for tag.
	Latest(ctx context.Context, tag string) ([]Item, error)
	// Bunch returns up to limit posts for tag, for the initial fill.
	Bunch(ctx context.Context, tag string, limit int) ([]Item, error)
	// Post resolves a post id.
	Post(ctx context.Context, id string) (*PostInfo, error)
}

// Client talks to the feed HTTP API. It handles caching, retry logic and
// common request headers.
type Client struct {
	http       *http.Client
	base       string
	cache      cache.Cache
	keyer      cache.Keyer
	ttl        time.Duration
	headers    map[string]string
	attempts   int
	retryDelay time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithKeyer sets the cache keyer.
func WithKeyer(k cache.Keyer) ClientOption {
	return func(c *Client) { c.keyer = k }
}

// WithHeaders adds headers to every request, e.g. an API token.
func WithHeaders(h map[string]string) ClientOption {
	return func(c *Client) { c.headers = h }
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *Client) { c.attempts, c.retryDelay = attempts, delay }
}

// NewClient creates a client for the API rooted at base. A nil cache
// disables post caching.
func NewClient(base string, c cache.Cache, ttl time.Duration, opts ...ClientOption) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	if ttl <= 0 {
		ttl = DefaultPostTTL
	}
	cl := &Client{
		http:       httputil.NewClient(0),
		base:       strings.TrimRight(base, "/"),
		cache:      c,
		keyer:      cache.NewDefaultKeyer(),
		ttl:        ttl,
		attempts:   3,
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// Latest implements [Source].
func (c *Client) Latest(ctx context.Context, tag string) ([]Item, error) {
	var resp listResponse
	if err := c.get(ctx, c.base+"/hashtags/"+url.PathEscape(tag), &resp); err != nil {
		return nil, c.wrap(err, "latest posts for #%s", tag)
	}
	return withTag(resp.Res, tag), nil
}

// Bunch implements [Source].
func (c *Client) Bunch(ctx context.Context, tag string, limit int) ([]Item, error) {
	u := c.base + "/hashtags/" + url.PathEscape(tag) + "/bunch?limit=" + strconv.Itoa(limit)
	var resp listResponse
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, c.wrap(err, "bunch for #%s", tag)
	}
	items := withTag(resp.Res, tag)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Post implements [Source]. Results are cached.
func (c *Client) Post(ctx context.Context, id string) (*PostInfo, error) {
	key := c.keyer.FeedKey("post", id)
	if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		var info PostInfo
		if json.Unmarshal(data, &info) == nil {
			return &info, nil
		}
	}

	var info PostInfo
	if err := c.get(ctx, c.base+"/posts/"+url.PathEscape(id), &info); err != nil {
		if errors.Is(err, httputil.ErrNotFound) {
			return nil, mosaicerrors.Wrap(mosaicerrors.ErrCodePostNotFound, err, "post %s", id)
		}
		return nil, c.wrap(err, "post %s", id)
	}
	if info.ID == "" {
		info.ID = id
	}
	if data, err := json.Marshal(info); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return &info, nil
}

func (c *Client) get(ctx context.Context, u string, v any) error {
	return httputil.Retry(ctx, c.attempts, c.retryDelay, func() error {
		body, err := c.doRequest(ctx, u)
		if err != nil {
			return err
		}
		defer body.Close()
		if err := json.NewDecoder(body).Decode(v); err != nil {
			return fmt.Errorf("decode %s: %w", u, err)
		}
		return nil
	})
}

func (c *Client) doRequest(ctx context.Context, u string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &httputil.RetryableError{Err: fmt.Errorf("%w: %v", httputil.ErrNetwork, err)}
	}
	if err := httputil.CheckStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// wrap classifies a transport failure. Context cancellation is passed
// through untouched so callers can tell shutdown from a broken feed.
func (c *Client) wrap(err error, format string, args ...any) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	code := mosaicerrors.ErrCodeNetwork
	switch {
	case mosaicerrors.GetCode(err) == mosaicerrors.ErrCodeRateLimited:
		code = mosaicerrors.ErrCodeRateLimited
	case errors.Is(err, httputil.ErrNotFound):
		code = mosaicerrors.ErrCodeNotFound
	}
	return mosaicerrors.Wrap(code, err, format, args...)
}

func withTag(items []Item, tag string) []Item {
	for i := range items {
		if items[i].Hashtag == "" {
			items[i].Hashtag = tag
		}
	}
	return items
}

var _ Source = (*Client)(nil)
