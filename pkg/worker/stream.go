package worker

import (
	"context"

	"github.com/matzehuels/mosaic/pkg/feed"
	"github.com/matzehuels/mosaic/pkg/post"
)

// stream chains the initial bunch and the update stream into one channel.
// The bunch is bounded by the empty tiles at call time and abandoned as
// soon as the mosaic is filled. A nil Feed yields a nil channel, which
// never becomes ready.
func (w *Worker) stream() <-chan *post.FeedPost {
	if w.deps.Feed == nil {
		return nil
	}
	q := w.query()
	empty := w.gen.EmptySlots()
	out := make(chan *post.FeedPost)

	go func() {
		defer close(out)
		if !w.filled.Load() && empty > 0 {
			if !w.forwardBunch(q, empty, out) {
				return
			}
		}
		for p := range w.deps.Feed.Updates(w.ctx, q) {
			if !forward(w.ctx, out, p) {
				return
			}
		}
	}()
	return out
}

// forwardBunch relays bunch posts until the bunch ends or the mosaic is
// filled. It returns false when the worker is stopping.
func (w *Worker) forwardBunch(q feed.Query, limit int, out chan<- *post.FeedPost) bool {
	ctx, cancel := context.WithCancel(w.ctx)
	defer cancel()
	for p := range w.deps.Feed.Bunch(ctx, q, limit) {
		if w.filled.Load() {
			w.logger.Debug("mosaic filled, leaving initial bunch")
			return true
		}
		if !forward(w.ctx, out, p) {
			return false
		}
	}
	return w.ctx.Err() == nil
}

func forward(ctx context.Context, out chan<- *post.FeedPost, p *post.FeedPost) bool {
	select {
	case out <- p:
		return true
	case <-ctx.Done():
		return false
	}
}
