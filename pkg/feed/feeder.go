package feed

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/post"
	"github.com/matzehuels/mosaic/pkg/store"
)

// DefaultPollInterval separates two hashtag polls of an update stream.
const DefaultPollInterval = 3 * time.Second

// Drop reasons passed to Query.Dropped.
const (
	DropSeen    = "seen"
	DropBlocked = "blocked"
	DropResolve = "resolve"
	DropFetch   = "fetch"
)

// ImageFetcher downloads a remote image at tile size.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string, size images.Size) (*images.Image, error)
}

// Config wires a Feeder.
type Config struct {
	Source       Source
	Fetcher      ImageFetcher
	Store        store.Store // nil uses an in-memory store
	PollInterval time.Duration
	Logger       *log.Logger
}

// Feeder turns feed listings into ready-to-apply posts. One Feeder is
// shared by all workers; each stream keeps its own state.
type Feeder struct {
	source   Source
	fetcher  ImageFetcher
	store    store.Store
	interval time.Duration
	logger   *log.Logger
}

// Query selects what a stream yields.
type Query struct {
	Hashtags post.Hashtags
	TileSize images.Size
	// Skip drops posts by user name, e.g. blocked accounts. Optional.
	Skip func(user string) bool
	// Dropped is told why an item never became a post. Optional.
	Dropped func(reason string)
}

// New creates a Feeder.
func New(cfg Config) *Feeder {
	f := &Feeder{
		source:   cfg.Source,
		fetcher:  cfg.Fetcher,
		store:    cfg.Store,
		interval: cfg.PollInterval,
		logger:   cfg.Logger,
	}
	if f.store == nil {
		f.store = store.NewMemory()
	}
	if f.interval <= 0 {
		f.interval = DefaultPollInterval
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	return f
}

// Bunch streams up to limit unseen posts, walking the hashtags once in
// order. The channel closes when the limit is reached, the listings are
// exhausted or ctx is done.
func (f *Feeder) Bunch(ctx context.Context, q Query, limit int) <-chan *post.FeedPost {
	out := make(chan *post.FeedPost)
	go func() {
		defer close(out)
		seen := make(map[string]bool)
		sent := 0
		for _, tag := range q.Hashtags {
			if sent >= limit || ctx.Err() != nil {
				return
			}
			items, err := f.source.Bunch(ctx, tag, limit-sent)
			if err != nil {
				f.logger.Warn("bunch listing failed", "hashtag", tag, "err", err)
				continue
			}
			for _, it := range items {
				if sent >= limit {
					return
				}
				p, ok := f.resolve(ctx, q, it, seen)
				if !ok {
					continue
				}
				if !send(ctx, out, p) {
					return
				}
				sent++
			}
		}
	}()
	return out
}

// Updates polls the latest posts of each hashtag in turn, waiting the poll
// interval between polls, until ctx is done.
func (f *Feeder) Updates(ctx context.Context, q Query) <-chan *post.FeedPost {
	out := make(chan *post.FeedPost)
	go func() {
		defer close(out)
		// Only the ids of each hashtag's previous listing are remembered;
		// the store catches everything older.
		last := make(map[string]map[string]bool, len(q.Hashtags))
		cycle := q.Hashtags.Cycle()
		for {
			tag := cycle.Next()
			items, err := f.source.Latest(ctx, tag)
			if err != nil && ctx.Err() == nil {
				f.logger.Warn("hashtag poll failed", "hashtag", tag, "err", err)
			}
			if err == nil {
				prev := last[tag]
				seen := make(map[string]bool, len(items))
				for _, it := range items {
					if prev[it.ID] {
						seen[it.ID] = true
						continue
					}
					p, ok := f.resolve(ctx, q, it, seen)
					if !ok {
						continue
					}
					if !send(ctx, out, p) {
						return
					}
				}
				last[tag] = seen
			}
			if !sleep(ctx, f.interval) {
				return
			}
		}
	}()
	return out
}

// resolve turns a listing item into a post: skip known ids, look up the
// author, drop blocked users, download the image and persist the result.
func (f *Feeder) resolve(ctx context.Context, q Query, it Item, seen map[string]bool) (*post.FeedPost, bool) {
	if seen[it.ID] {
		return nil, false
	}
	seen[it.ID] = true

	known, err := f.store.Contains(ctx, it.ID)
	if err != nil {
		f.logger.Warn("store lookup failed", "post", it.ID, "err", err)
	}
	if known {
		q.drop(DropSeen)
		return nil, false
	}

	info, err := f.source.Post(ctx, it.ID)
	if err != nil {
		if ctx.Err() == nil {
			f.logger.Warn("resolve post failed", "post", it.ID, "err", err)
		}
		q.drop(DropResolve)
		return nil, false
	}
	if q.Skip != nil && q.Skip(info.UserName) {
		f.logger.Debug("skipping blocked user", "post", it.ID, "user", info.UserName)
		q.drop(DropBlocked)
		return nil, false
	}

	url := info.ImageURL
	if url == "" {
		url = it.ImageURL
	}
	img, err := f.fetcher.Fetch(ctx, url, q.TileSize)
	if err != nil {
		if ctx.Err() == nil {
			f.logger.Warn("image fetch failed", "post", it.ID, "url", url, "err", err)
		}
		q.drop(DropFetch)
		return nil, false
	}

	p := &post.FeedPost{
		PostID:   it.ID,
		Img:      img,
		User:     info.UserName,
		Tag:      it.Hashtag,
		ImageURL: url,
		Fetched:  time.Now(),
	}
	if err := f.store.Insert(ctx, p); err != nil {
		f.logger.Warn("store insert failed", "post", it.ID, "err", err)
	}
	f.logger.Debug("new post", "post", it.ID, "user", info.UserName, "hashtag", it.Hashtag)
	return p, true
}

func (q Query) drop(reason string) {
	if q.Dropped != nil {
		q.Dropped(reason)
	}
}

func send(ctx context.Context, out chan<- *post.FeedPost, p *post.FeedPost) bool {
	select {
	case out <- p:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
