package mosaic

import (
	"fmt"

	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/post"
)

type slot struct {
	distance Distance
	occupant post.Post
}

// Slots is the greedy assignment table: one slot per tile holding the best
// distance reached so far and the post that reached it.
//
// Slots is not safe for concurrent use.
type Slots struct {
	tiling images.Tiling
	slots  []slot
	empty  int
}

// NewSlots creates one empty slot per tile. Tiles whose origin region is
// fully transparent start at MinDistance and are never replaced.
func NewSlots(origin *images.Image, tiling images.Tiling) (*Slots, error) {
	stats, err := tileStats(origin, tiling)
	if err != nil {
		return nil, err
	}
	s := &Slots{tiling: tiling, slots: make([]slot, len(stats))}
	for i, st := range stats {
		if st.alpha == 0 {
			s.slots[i].distance = MinDistance
			continue
		}
		s.slots[i].distance = MaxDistance
		s.empty++
	}
	return s, nil
}

// Len returns the number of slots.
func (s *Slots) Len() int { return len(s.slots) }

// Distance returns the stored distance of slot i.
func (s *Slots) Distance(i int) Distance { return s.slots[i].distance }

// Occupant returns the post in slot i, or nil.
func (s *Slots) Occupant(i int) post.Post { return s.slots[i].occupant }

// Replace places candidate in the slot where it improves the stored distance
// the most. Ties go to the lowest index. When no slot improves, nothing
// changes and ok is false.
//
// dv must hold one distance per slot.
func (s *Slots) Replace(candidate post.Post, dv []Distance) (idx int, pos images.Position, evicted post.Post, ok bool) {
	if len(dv) != len(s.slots) {
		panic(fmt.Sprintf("mosaic: distance vector has %d entries, want %d", len(dv), len(s.slots)))
	}

	var best Distance
	idx = -1
	for i, sl := range s.slots {
		if dv[i] >= sl.distance {
			continue
		}
		if gap := sl.distance - dv[i]; gap > best {
			best, idx = gap, i
		}
	}
	if idx < 0 {
		return -1, images.Position{}, nil, false
	}

	sl := &s.slots[idx]
	if sl.distance == MaxDistance {
		s.empty--
	}
	evicted = sl.occupant
	sl.distance = dv[idx]
	sl.occupant = candidate
	return idx, s.tiling.Position(idx), evicted, true
}

// HasUnfilled reports whether some replaceable slot never received a post.
func (s *Slots) HasUnfilled() bool { return s.empty > 0 }

// Empty returns the number of slots still at MaxDistance.
func (s *Slots) Empty() int { return s.empty }

// Occupants returns the current posts in slot order, skipping empty slots.
func (s *Slots) Occupants() []post.Post {
	out := make([]post.Post, 0, len(s.slots)-s.empty)
	for _, sl := range s.slots {
		if sl.occupant != nil {
			out = append(out, sl.occupant)
		}
	}
	return out
}
