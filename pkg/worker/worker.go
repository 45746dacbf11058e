// Package worker runs mosaics in the background.
//
// A [Worker] owns one [mosaic.Generator] and a single goroutine that feeds
// it: first a bounded bunch of feed posts to fill the empty tiles, then the
// endless hashtag updates, with directly submitted posts merged in as they
// arrive. Readers call [Worker.Art] at any time and get the latest
// immutable snapshot, also after the worker stopped.
//
// A [Registry] keeps the running workers of a process by id.
package worker

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mosaic/pkg/errors"
	"github.com/matzehuels/mosaic/pkg/feed"
	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/mosaic"
	"github.com/matzehuels/mosaic/pkg/observability"
	"github.com/matzehuels/mosaic/pkg/post"
	"github.com/matzehuels/mosaic/pkg/store"
)

// Defaults applied by [Options.withDefaults].
const (
	DefaultFillBoost   = 3
	DefaultWarmLimit   = 1000
	DefaultDirectQueue = 64
)

// ID identifies a worker within a process.
type ID uint64

func (id ID) String() string { return strconv.FormatUint(uint64(id), 10) }

// ParseID parses the decimal form produced by String.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid worker id %q", s)
	}
	return ID(n), nil
}

// Feed supplies feed posts. Implemented by [feed.Feeder].
type Feed interface {
	Bunch(ctx context.Context, q feed.Query, limit int) <-chan *post.FeedPost
	Updates(ctx context.Context, q feed.Query) <-chan *post.FeedPost
}

// Options describe one mosaic.
type Options struct {
	Origin   *images.Image
	Hashtags post.Hashtags
	// TileSize defaults to images.DefaultTileSize of the origin.
	TileSize images.Size

	// FillBoost is how many extra times a post is applied while tiles are
	// still empty. Negative disables boosting.
	FillBoost int
	// WarmLimit caps how many stored posts are replayed at start.
	// Negative disables the warm start.
	WarmLimit   int
	DirectQueue int
	Blocked     []string
}

func (o Options) withDefaults() Options {
	if o.TileSize.IsZero() && o.Origin != nil {
		o.TileSize = images.DefaultTileSize(o.Origin.Size())
	}
	if o.FillBoost == 0 {
		o.FillBoost = DefaultFillBoost
	}
	o.FillBoost = max(o.FillBoost, 0)
	if o.WarmLimit == 0 {
		o.WarmLimit = DefaultWarmLimit
	}
	if o.DirectQueue <= 0 {
		o.DirectQueue = DefaultDirectQueue
	}
	return o
}

// Deps are the collaborators shared by all workers.
type Deps struct {
	Feed   Feed        // nil runs on direct posts only
	Store  store.Store // nil disables warm start and persistence of direct posts
	Logger *log.Logger
}

// Worker is a running mosaic. All methods are safe for concurrent use.
type Worker struct {
	id       ID
	hashtags post.Hashtags
	tiling   images.Tiling
	opts     Options
	deps     Deps
	logger   *log.Logger

	gen    *mosaic.Generator // owned by the run goroutine
	direct chan *post.DirectPost
	filled atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	art     *mosaic.Art
	err     error
	blocked map[string]bool
}

// Start validates opts, builds the generator and launches the worker.
// The worker lives until [Worker.Stop]; cancelling ctx does not stop it.
func Start(ctx context.Context, id ID, opts Options, deps Deps) (*Worker, error) {
	if opts.Origin == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "origin image is required")
	}
	if err := errors.ValidateHashtags(opts.Hashtags); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	tiling, err := images.NewTiling(opts.Origin.Size(), opts.TileSize)
	if err != nil {
		return nil, err
	}
	gen, art, err := mosaic.NewGenerator(opts.Origin, tiling, opts.Hashtags)
	if err != nil {
		return nil, err
	}

	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	w := &Worker{
		id:       id,
		hashtags: gen.Hashtags(),
		tiling:   tiling,
		opts:     opts,
		deps:     deps,
		logger:   deps.Logger.With("worker", id),
		gen:      gen,
		direct:   make(chan *post.DirectPost, opts.DirectQueue),
		done:     make(chan struct{}),
		art:      art,
		blocked:  make(map[string]bool, len(opts.Blocked)),
	}
	for _, u := range opts.Blocked {
		w.blocked[u] = true
	}
	w.filled.Store(gen.HasEnoughPieces())
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))

	observability.Worker().OnWorkerStart(w.ctx, uint64(id), tiling.Len())
	w.logger.Info("worker started", "hashtags", w.hashtags, "origin", tiling.Origin(), "tile", tiling.Tile(), "tiles", tiling.Len())
	go w.run()
	return w, nil
}

// ID returns the worker id.
func (w *Worker) ID() ID { return w.id }

// Hashtags returns the tags the worker follows.
func (w *Worker) Hashtags() post.Hashtags { return w.hashtags }

// Tiling returns the tile grid.
func (w *Worker) Tiling() images.Tiling { return w.tiling }

// Art returns the latest snapshot. It keeps working after Stop.
func (w *Worker) Art() *mosaic.Art {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.art
}

// Filled reports whether every replaceable tile holds a post.
func (w *Worker) Filled() bool { return w.filled.Load() }

// Err returns why the worker terminated on its own, or nil.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Done is closed once the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Running reports whether the worker still accepts posts.
func (w *Worker) Running() bool { return w.ctx.Err() == nil }

// Block drops future feed posts by user.
func (w *Worker) Block(user string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocked[user] = true
}

func (w *Worker) isBlocked(user string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.blocked[user]
}

// Submit queues a direct post. It blocks while the queue is full and fails
// with ErrCodeWorkerStopped once the worker is stopped.
func (w *Worker) Submit(ctx context.Context, p *post.DirectPost) error {
	if p == nil || p.Img == nil {
		return errors.New(errors.ErrCodeInvalidInput, "post has no image")
	}
	if p.Img.Size() != w.tiling.Tile() {
		return errors.New(errors.ErrCodeInvalidSize, "post image is %s, tile is %s", p.Img.Size(), w.tiling.Tile())
	}
	if !w.Running() {
		return w.stoppedErr()
	}
	select {
	case w.direct <- p:
		return nil
	case <-w.ctx.Done():
		return w.stoppedErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels the worker and waits for its goroutine to exit. Posts still
// queued are discarded. Stop is idempotent.
func (w *Worker) Stop() {
	w.cancel()
	<-w.done
}

func (w *Worker) stoppedErr() error {
	return errors.New(errors.ErrCodeWorkerStopped, "worker %s is stopped", w.id)
}

func (w *Worker) publish(art *mosaic.Art) {
	w.mu.Lock()
	w.art = art
	w.mu.Unlock()
}

func (w *Worker) fail(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

func (w *Worker) run() {
	var runErr error
	defer func() {
		if r := recover(); r != nil {
			runErr = errors.New(errors.ErrCodeWorkerFailed, "worker %s panicked: %v", w.id, r)
			w.fail(runErr)
			w.logger.Error("worker failed", "err", runErr)
		}
		w.cancel()
		observability.Worker().OnWorkerStop(context.WithoutCancel(w.ctx), uint64(w.id), runErr)
		w.logger.Info("worker stopped", "snapshot", w.Art().ID)
		close(w.done)
	}()

	w.warmStart()
	feedPosts := w.stream()
	for {
		select {
		case <-w.ctx.Done():
			return
		case p, ok := <-feedPosts:
			if !ok {
				feedPosts = nil
				continue
			}
			// select picks randomly among ready cases; a stop signal wins
			// over queued posts.
			if w.ctx.Err() != nil {
				return
			}
			w.apply(p, observability.SourceFeed)
		case p := <-w.direct:
			if w.ctx.Err() != nil {
				return
			}
			if w.deps.Store != nil {
				if err := w.deps.Store.Insert(w.ctx, p); err != nil {
					w.logger.Warn("store insert failed", "err", err)
				}
			}
			w.apply(p, observability.SourceDirect)
		}
	}
}

// apply places p, repeating while the mosaic still has empty tiles, and
// publishes every new snapshot.
func (w *Worker) apply(p post.Post, source string) {
	start := time.Now()
	times := 1
	if !w.gen.HasEnoughPieces() {
		times += w.opts.FillBoost
	}
	for i := range times {
		if i > 0 && w.ctx.Err() != nil {
			break
		}
		art, placed, err := w.gen.Apply(p)
		if err != nil {
			w.logger.Warn("post rejected", "source", source, "user", p.UserName(), "err", err)
			observability.Worker().OnPostDropped(w.ctx, uint64(w.id), string(errors.GetCode(err)))
			return
		}
		if !placed {
			break
		}
		w.publish(art)
	}

	empty := w.gen.EmptySlots()
	if empty == 0 && !w.filled.Swap(true) {
		w.logger.Info("all tiles filled", "snapshot", w.gen.Current().ID)
	}
	obs := observability.Worker()
	obs.OnPostApplied(w.ctx, uint64(w.id), source, time.Since(start))
	obs.OnFillProgress(w.ctx, uint64(w.id), empty)
}

// warmStart replays stored posts for the worker's hashtags.
func (w *Worker) warmStart() {
	if w.deps.Store == nil || w.opts.WarmLimit < 0 {
		return
	}
	posts, err := w.deps.Store.FindByHashtags(w.ctx, w.hashtags, w.opts.WarmLimit, w.tiling.Tile())
	if err != nil {
		w.logger.Warn("warm start failed", "err", err)
		return
	}
	// Newest first from the store; replay oldest first.
	for i := len(posts) - 1; i >= 0; i-- {
		if w.ctx.Err() != nil {
			return
		}
		art, placed, err := w.gen.Apply(posts[i])
		if err != nil || !placed {
			continue
		}
		w.publish(art)
	}
	w.filled.Store(w.gen.HasEnoughPieces())
	observability.Worker().OnFillProgress(w.ctx, uint64(w.id), w.gen.EmptySlots())
	if len(posts) > 0 {
		w.logger.Info("warm start", "posts", len(posts), "empty", w.gen.EmptySlots())
	}
}

func (w *Worker) query() feed.Query {
	return feed.Query{
		Hashtags: w.hashtags,
		TileSize: w.tiling.Tile(),
		Skip:     w.isBlocked,
		Dropped: func(reason string) {
			observability.Worker().OnPostDropped(w.ctx, uint64(w.id), reason)
		},
	}
}
