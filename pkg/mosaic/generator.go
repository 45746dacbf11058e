// Package mosaic implements the online photomosaic: a table of tile slots
// filled greedily by incoming posts and a generator that renders each
// assignment into an immutable [Art] snapshot.
//
// Every post is scored against all tiles by a [DistanceFunc] and placed in
// the slot where it lowers the stored distance the most, so empty tiles fill
// first and later posts keep displacing poor matches.
package mosaic

import (
	"time"

	"github.com/matzehuels/mosaic/pkg/errors"
	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/post"
)

// Generator turns a stream of posts into a sequence of snapshots.
// It must only be used from a single goroutine.
type Generator struct {
	tiling    images.Tiling
	hashtags  post.Hashtags
	distance  DistanceFunc
	slots     *Slots
	composite *images.Image
	current   *Art
}

// Option configures a Generator.
type Option func(*Generator)

// WithDistanceFunc replaces the default mean-grayscale comparison.
func WithDistanceFunc(d DistanceFunc) Option {
	return func(g *Generator) { g.distance = d }
}

// NewGenerator prepares an empty mosaic of origin and returns it with its
// first snapshot (id 0, blank composite, no posts).
func NewGenerator(origin *images.Image, tiling images.Tiling, hashtags post.Hashtags, opts ...Option) (*Generator, *Art, error) {
	if origin.Size() != tiling.Origin() {
		return nil, nil, errors.New(errors.ErrCodeInvalidSize, "origin is %s, tiling expects %s", origin.Size(), tiling.Origin())
	}
	slots, err := NewSlots(origin, tiling)
	if err != nil {
		return nil, nil, err
	}
	g := &Generator{
		tiling:    tiling,
		hashtags:  hashtags.Clone(),
		slots:     slots,
		composite: images.New(tiling.Origin()),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.distance == nil {
		if g.distance, err = NewMeanGrayscale(origin, tiling); err != nil {
			return nil, nil, err
		}
	}
	g.current = g.snapshot(0)
	return g, g.current, nil
}

// Apply places p and returns the resulting snapshot. placed is false when p
// would not improve any tile; the current snapshot is returned unchanged.
//
// A post whose image is not exactly tile sized is rejected with
// ErrCodeInvalidSize and leaves the generator untouched.
func (g *Generator) Apply(p post.Post) (art *Art, placed bool, err error) {
	img := p.Image()
	if img == nil {
		return nil, false, errors.New(errors.ErrCodeInvalidSize, "post has no image")
	}
	if img.Size() != g.tiling.Tile() {
		return nil, false, errors.New(errors.ErrCodeInvalidSize, "post image is %s, tile is %s", img.Size(), g.tiling.Tile())
	}

	_, pos, _, ok := g.slots.Replace(p, g.distance.Distances(img))
	if !ok {
		return g.current, false, nil
	}

	next := g.composite.Clone()
	if err := next.Paste(img, pos); err != nil {
		return nil, false, err
	}
	g.composite = next
	g.current = g.snapshot(g.current.ID + 1)
	return g.current, true, nil
}

// HasEnoughPieces reports whether every replaceable tile holds a post.
func (g *Generator) HasEnoughPieces() bool { return !g.slots.HasUnfilled() }

// EmptySlots returns how many tiles still wait for their first post.
func (g *Generator) EmptySlots() int { return g.slots.Empty() }

// Current returns the latest snapshot.
func (g *Generator) Current() *Art { return g.current }

// Hashtags returns the tags the mosaic was started with.
func (g *Generator) Hashtags() post.Hashtags { return g.hashtags }

// Tiling returns the tile grid.
func (g *Generator) Tiling() images.Tiling { return g.tiling }

// Slots exposes the assignment table for inspection.
func (g *Generator) Slots() *Slots { return g.slots }

func (g *Generator) snapshot(id uint64) *Art {
	return &Art{
		ID:        id,
		Image:     g.composite,
		Posts:     g.slots.Occupants(),
		Hashtags:  g.hashtags,
		Tiling:    g.tiling,
		Empty:     g.slots.Empty(),
		CreatedAt: time.Now(),
	}
}
