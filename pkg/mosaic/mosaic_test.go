package mosaic

import (
	"bytes"
	"fmt"
	"image/color"
	"testing"

	"github.com/matzehuels/mosaic/pkg/errors"
	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/post"
)

func gray(v uint8) color.NRGBA { return color.NRGBA{R: v, G: v, B: v, A: 255} }

func tiling(t *testing.T, origin, tile uint32) images.Tiling {
	t.Helper()
	tl, err := images.NewTiling(images.Square(origin), images.Square(tile))
	if err != nil {
		t.Fatal(err)
	}
	return tl
}

func direct(size uint32, c color.NRGBA, user string) *post.DirectPost {
	return &post.DirectPost{Img: images.Uniform(images.Square(size), c), User: user, Tag: "t"}
}

// fixedDistances returns a preset vector regardless of the candidate.
type fixedDistances struct{ dv []Distance }

func (f *fixedDistances) Distances(*images.Image) []Distance {
	return append([]Distance(nil), f.dv...)
}

func TestMeanGrayscaleDistances(t *testing.T) {
	tl := tiling(t, 4, 2)
	origin := images.New(images.Square(4))
	origin.Paste(images.Uniform(images.Square(2), gray(0)), tl.Position(0))
	origin.Paste(images.Uniform(images.Square(2), gray(100)), tl.Position(1))
	origin.Paste(images.Uniform(images.Square(2), gray(200)), tl.Position(2))
	origin.Paste(images.Uniform(images.Square(2), gray(255)), tl.Position(3))

	d, err := NewMeanGrayscale(origin, tl)
	if err != nil {
		t.Fatal(err)
	}
	got := d.Distances(images.Uniform(images.Square(2), gray(100)))
	want := []Distance{1000000, 0, 1000000, 1550000}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Distances()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestNewSlotsLocksTransparentTiles(t *testing.T) {
	tl := tiling(t, 4, 2)
	origin := images.New(images.Square(4))
	origin.Paste(images.Uniform(images.Square(2), gray(50)), tl.Position(1))
	origin.Paste(images.Uniform(images.Square(2), gray(50)), tl.Position(2))

	s, err := NewSlots(origin, tl)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}
	wantDist := []Distance{MinDistance, MaxDistance, MaxDistance, MinDistance}
	for i, w := range wantDist {
		if s.Distance(i) != w {
			t.Errorf("slot %d distance = %d, want %d", i, s.Distance(i), w)
		}
	}
	if s.Empty() != 2 || !s.HasUnfilled() {
		t.Errorf("Empty() = %d, HasUnfilled() = %v", s.Empty(), s.HasUnfilled())
	}

	// Locked slots never accept a candidate, even a perfect one.
	for range 10 {
		s.Replace(direct(2, gray(0), "x"), []Distance{0, 0, 0, 0})
	}
	if s.Occupant(0) != nil || s.Occupant(3) != nil {
		t.Error("transparent tiles must never be replaced")
	}
}

func opaqueSlots(t *testing.T, origin, tile uint32) *Slots {
	t.Helper()
	tl := tiling(t, origin, tile)
	s, err := NewSlots(images.Uniform(images.Square(origin), gray(10)), tl)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestReplaceMaximizesGap(t *testing.T) {
	s := opaqueSlots(t, 4, 2)
	a, b, c := direct(2, gray(1), "a"), direct(2, gray(2), "b"), direct(2, gray(3), "c")

	s.Replace(a, []Distance{10, 20, 30, 40})
	s.Replace(b, []Distance{100, 100, 100, 100})
	// slots: 0=10(a) 1=100(b) 2=MAX 3=MAX; c improves slot 2 most.
	idx, pos, evicted, ok := s.Replace(c, []Distance{5, 50, 60, 70})
	if !ok || idx != 2 {
		t.Fatalf("Replace() idx = %d ok = %v, want 2", idx, ok)
	}
	if pos != (images.Position{X: 0, Y: 2}) {
		t.Errorf("Replace() pos = %+v, want {0 2}", pos)
	}
	if evicted != nil {
		t.Errorf("evicted = %v, want nil", evicted)
	}

	// Fill slot 3, then a candidate that improves slot 1 by 90 evicts b.
	s.Replace(direct(2, gray(4), "d"), []Distance{50, 50, 50, 50})
	idx, _, evicted, ok = s.Replace(c, []Distance{10, 10, 60, 50})
	if !ok || idx != 1 || evicted != b {
		t.Errorf("Replace() = idx %d evicted %v, want idx 1 evicting b", idx, evicted)
	}
	if s.Distance(1) != 10 {
		t.Errorf("slot 1 distance = %d, want 10", s.Distance(1))
	}
}

func TestReplaceTieBreaksLowestIndex(t *testing.T) {
	s := opaqueSlots(t, 6, 2)
	for i := range s.Len() {
		if i == 0 {
			continue
		}
		dv := make([]Distance, s.Len())
		for j := range dv {
			dv[j] = MaxDistance - 1
		}
		dv[i] = 100
		s.Replace(direct(2, gray(1), fmt.Sprint(i)), dv)
	}
	s.Replace(direct(2, gray(1), "zero"), []Distance{100, 100, 100, 100, 100, 100, 100, 100, 100})

	// Slots 4 and 7 improve by the same amount; 4 must win.
	dv := []Distance{100, 100, 100, 100, 40, 100, 100, 40, 100}
	idx, _, _, ok := s.Replace(direct(2, gray(2), "tie"), dv)
	if !ok || idx != 4 {
		t.Errorf("tie broken to %d, want 4", idx)
	}
}

func TestReplaceNeverWorsens(t *testing.T) {
	s := opaqueSlots(t, 4, 2)
	for i := range 4 {
		s.Replace(direct(2, gray(1), "x"), []Distance{uint64(10 + i), 10, 10, 10})
	}
	before := []Distance{s.Distance(0), s.Distance(1), s.Distance(2), s.Distance(3)}

	if _, _, _, ok := s.Replace(direct(2, gray(9), "worse"), []Distance{500, 500, 500, 500}); ok {
		t.Fatal("a candidate worse everywhere must not be placed")
	}
	for i, b := range before {
		if s.Distance(i) != b {
			t.Errorf("slot %d changed from %d to %d", i, b, s.Distance(i))
		}
	}
}

func TestReplaceMonotonic(t *testing.T) {
	s := opaqueSlots(t, 8, 2)
	dvs := [][]Distance{
		{900, 800, 700, 600, 500, 400, 300, 200, 100, 900, 800, 700, 600, 500, 400, 300},
		{100, 200, 300, 400, 500, 600, 700, 800, 900, 100, 200, 300, 400, 500, 600, 700},
		{50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50},
	}
	for round := range 20 {
		dv := dvs[round%len(dvs)]
		prev := make([]Distance, s.Len())
		for i := range prev {
			prev[i] = s.Distance(i)
		}
		idx, _, _, ok := s.Replace(direct(2, gray(1), "m"), dv)
		if !ok {
			continue
		}
		if s.Distance(idx) > prev[idx] {
			t.Fatalf("round %d: slot %d worsened %d -> %d", round, idx, prev[idx], s.Distance(idx))
		}
		chosenGap := prev[idx] - dv[idx]
		for i := range prev {
			if dv[i] < prev[i] && prev[i]-dv[i] > chosenGap {
				t.Fatalf("round %d: slot %d had a larger gap than chosen slot %d", round, i, idx)
			}
		}
	}
}

func TestReplaceDoesNotDeduplicate(t *testing.T) {
	s := opaqueSlots(t, 4, 2)
	p := &post.FeedPost{PostID: "same", Img: images.Uniform(images.Square(2), gray(5))}
	dv := []Distance{10, 10, 10, 10}
	s.Replace(p, dv)
	s.Replace(p, dv)

	count := 0
	for _, o := range s.Occupants() {
		if id, _ := o.ID(); id == "same" {
			count++
		}
	}
	if count != 2 {
		t.Errorf("post occupies %d slots, want 2 (dedup is the feed filter's job)", count)
	}
}

func TestReplacePanicsOnLengthMismatch(t *testing.T) {
	s := opaqueSlots(t, 4, 2)
	defer func() {
		if recover() == nil {
			t.Error("Replace with short vector should panic")
		}
	}()
	s.Replace(direct(2, gray(1), "x"), []Distance{1})
}

func TestFullSizeGridKeepsBestInSlotZero(t *testing.T) {
	tl := tiling(t, 1500, 30)
	s, err := NewSlots(images.Uniform(images.Square(1500), gray(128)), tl)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2500 {
		t.Fatalf("Len() = %d, want 2500", s.Len())
	}

	for k := range 2500 {
		dv := make([]Distance, 2500)
		for i := range dv {
			dv[i] = MaxDistance - 1
		}
		dv[0] = Distance(2500 - k)
		p := &post.FeedPost{PostID: fmt.Sprint(k), Img: images.New(images.Square(30))}
		idx, pos, _, ok := s.Replace(p, dv)
		if !ok || idx != 0 {
			t.Fatalf("step %d placed at %d", k, idx)
		}
		if pos.X%30 != 0 || pos.Y%30 != 0 || pos.X >= 1500 || pos.Y >= 1500 {
			t.Fatalf("step %d position %+v off grid", k, pos)
		}
		if s.Occupant(0) != post.Post(p) {
			t.Fatalf("step %d: slot 0 should hold the closest post", k)
		}
	}
	if n := len(s.Occupants()); n > 2500 {
		t.Errorf("occupants = %d, want <= 2500", n)
	}
}

func newTestGenerator(t *testing.T, opts ...Option) (*Generator, *Art) {
	t.Helper()
	tl := tiling(t, 4, 2)
	origin := images.Uniform(images.Square(4), gray(100))
	g, art, err := NewGenerator(origin, tl, post.Hashtags{"sun"}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return g, art
}

func TestGeneratorInitialSnapshot(t *testing.T) {
	g, art := newTestGenerator(t)
	if art.ID != 0 || len(art.Posts) != 0 {
		t.Errorf("initial art id=%d posts=%d", art.ID, len(art.Posts))
	}
	if art.Image.MeanAlpha() != 0 {
		t.Error("initial composite should be transparent")
	}
	if g.HasEnoughPieces() || g.EmptySlots() != 4 {
		t.Errorf("HasEnoughPieces=%v EmptySlots=%d", g.HasEnoughPieces(), g.EmptySlots())
	}
}

func TestGeneratorApply(t *testing.T) {
	g, first := newTestGenerator(t)

	for i := range 4 {
		art, placed, err := g.Apply(direct(2, gray(uint8(100+i)), fmt.Sprint(i)))
		if err != nil || !placed {
			t.Fatalf("Apply %d: placed=%v err=%v", i, placed, err)
		}
		if art.ID != uint64(i+1) {
			t.Errorf("snapshot id = %d, want %d", art.ID, i+1)
		}
		if len(art.Posts) != i+1 {
			t.Errorf("posts = %d, want %d", len(art.Posts), i+1)
		}
		if art.Hashtags[0] != "sun" {
			t.Error("hashtags changed")
		}
	}
	if !g.HasEnoughPieces() {
		t.Error("all four tiles should be filled")
	}
	if first.Image.MeanAlpha() != 0 {
		t.Error("earlier snapshot was mutated")
	}
	if g.Current().Image.MeanAlpha() != 255 {
		t.Error("final composite should be opaque")
	}
}

func TestGeneratorPaintsAtChosenTile(t *testing.T) {
	g, _ := newTestGenerator(t, WithDistanceFunc(&fixedDistances{dv: []Distance{9, 9, 1, 9}}))
	red := color.NRGBA{R: 255, A: 255}
	art, _, err := g.Apply(direct(2, red, "r"))
	if err != nil {
		t.Fatal(err)
	}
	// Tile 2 is the bottom-left quadrant.
	if got := art.Image.NRGBA().NRGBAAt(1, 3); got != red {
		t.Errorf("pixel (1,3) = %v, want red", got)
	}
	if got := art.Image.NRGBA().NRGBAAt(3, 3); got.A != 0 {
		t.Errorf("pixel (3,3) = %v, want transparent", got)
	}
}

func TestGeneratorRejectsWrongSize(t *testing.T) {
	g, _ := newTestGenerator(t)
	_, _, err := g.Apply(direct(3, gray(1), "big"))
	if !errors.Is(err, errors.ErrCodeInvalidSize) {
		t.Fatalf("Apply() error = %v, want %s", err, errors.ErrCodeInvalidSize)
	}
	if g.Current().ID != 0 || g.EmptySlots() != 4 {
		t.Error("rejected post must not change state")
	}
}

func TestNewGeneratorOriginMismatch(t *testing.T) {
	tl := tiling(t, 4, 2)
	_, _, err := NewGenerator(images.New(images.Square(6)), tl, post.Hashtags{"a"})
	if !errors.Is(err, errors.ErrCodeInvalidSize) {
		t.Errorf("NewGenerator() error = %v", err)
	}
}

func TestArtPNGCached(t *testing.T) {
	g, _ := newTestGenerator(t)
	art, _, _ := g.Apply(direct(2, gray(7), "p"))
	a, err := art.PNG()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := art.PNG()
	if &a[0] != &b[0] || !bytes.Equal(a, b) {
		t.Error("PNG should be encoded once per snapshot")
	}
	if art.Complete() {
		t.Error("one post cannot complete four tiles")
	}
}
