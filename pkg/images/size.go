package images

import (
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/matzehuels/mosaic/pkg/errors"
)

// Size is a width/height pair in pixels.
type Size struct {
	Width  uint32 `json:"width" toml:"width"`
	Height uint32 `json:"height" toml:"height"`
}

// Square returns a Size with equal sides.
func Square(n uint32) Size { return Size{Width: n, Height: n} }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// Pixels returns Width*Height.
func (s Size) Pixels() int { return int(s.Width) * int(s.Height) }

// IsZero reports whether either side is zero.
func (s Size) IsZero() bool { return s.Width == 0 || s.Height == 0 }

// ParseSize parses "WxH" or a single number for a square.
func ParseSize(s string) (Size, error) {
	w, h, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !found {
		h = w
	}
	width, errW := strconv.ParseUint(w, 10, 32)
	height, errH := strconv.ParseUint(h, 10, 32)
	if errW != nil || errH != nil || width == 0 || height == 0 {
		return Size{}, errors.New(errors.ErrCodeInvalidSize, "invalid size %q, want WxH", s)
	}
	return Size{Width: uint32(width), Height: uint32(height)}, nil
}

// Position is the top-left pixel of a tile within the origin image.
type Position struct {
	X uint32 `json:"x"`
	Y uint32 `json:"y"`
}

// Tiling relates an origin size to the tile size that partitions it.
//
// A Tiling can only be obtained from [NewTiling], which checks divisibility
// once; every holder afterwards may rely on the grid being exact.
type Tiling struct {
	origin Size
	tile   Size
}

// NewTiling validates that tile partitions origin exactly.
func NewTiling(origin, tile Size) (Tiling, error) {
	if origin.IsZero() || tile.IsZero() {
		return Tiling{}, errors.New(errors.ErrCodeInvalidSize, "sizes must be non-zero (origin %s, tile %s)", origin, tile)
	}
	if tile.Width > origin.Width || tile.Height > origin.Height {
		return Tiling{}, errors.New(errors.ErrCodeInvalidSize, "tile %s is larger than origin %s", tile, origin)
	}
	if origin.Width%tile.Width != 0 || origin.Height%tile.Height != 0 {
		return Tiling{}, errors.New(errors.ErrCodeInvalidSize, "tile %s does not divide origin %s", tile, origin)
	}
	return Tiling{origin: origin, tile: tile}, nil
}

// Origin returns the size of the whole mosaic.
func (t Tiling) Origin() Size { return t.origin }

// Tile returns the size of a single tile.
func (t Tiling) Tile() Size { return t.tile }

// NumX returns the number of tile columns.
func (t Tiling) NumX() int { return int(t.origin.Width / t.tile.Width) }

// NumY returns the number of tile rows.
func (t Tiling) NumY() int { return int(t.origin.Height / t.tile.Height) }

// Len returns the number of tiles.
func (t Tiling) Len() int { return t.NumX() * t.NumY() }

// Position returns the top-left corner of tile i in row-major order.
func (t Tiling) Position(i int) Position {
	n := t.NumX()
	return Position{
		X: uint32(i%n) * t.tile.Width,
		Y: uint32(i/n) * t.tile.Height,
	}
}

// Rect returns the pixel rectangle covered by tile i.
func (t Tiling) Rect(i int) image.Rectangle {
	p := t.Position(i)
	return image.Rect(int(p.X), int(p.Y), int(p.X+t.tile.Width), int(p.Y+t.tile.Height))
}

// DefaultTileSize is the tile size used when a caller supplies only an origin.
func DefaultTileSize(origin Size) Size {
	if origin == Square(1500) {
		return Square(30)
	}
	return Square(50)
}
