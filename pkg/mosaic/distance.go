package mosaic

import (
	"math"

	"github.com/matzehuels/mosaic/pkg/images"
)

// Distance scores how far a candidate is from a tile; lower is better.
type Distance = uint64

const (
	// MaxDistance marks a slot that has never been filled.
	MaxDistance Distance = math.MaxUint64
	// MinDistance marks a slot that can never be replaced.
	MinDistance Distance = 0
)

// distanceScale turns grayscale differences into integers.
const distanceScale = 10000

// DistanceFunc compares a candidate tile image against every origin tile.
type DistanceFunc interface {
	// Distances returns one distance per tile, in tile order.
	Distances(candidate *images.Image) []Distance
}

// MeanGrayscale compares mean luma values. The per-tile means of the origin
// are computed once at construction.
type MeanGrayscale struct {
	signature []float64
}

// NewMeanGrayscale caches the mean grayscale of each origin tile.
func NewMeanGrayscale(origin *images.Image, tiling images.Tiling) (*MeanGrayscale, error) {
	stats, err := tileStats(origin, tiling)
	if err != nil {
		return nil, err
	}
	sig := make([]float64, len(stats))
	for i, s := range stats {
		sig[i] = s.gray
	}
	return &MeanGrayscale{signature: sig}, nil
}

// Signature returns the cached per-tile means. Callers must not modify it.
func (d *MeanGrayscale) Signature() []float64 { return d.signature }

// Distances returns round(|tile mean - candidate mean| * 10000) per tile.
func (d *MeanGrayscale) Distances(candidate *images.Image) []Distance {
	mean := candidate.MeanGrayscale()
	out := make([]Distance, len(d.signature))
	for i, s := range d.signature {
		out[i] = Distance(math.Round(math.Abs(s-mean) * distanceScale))
	}
	return out
}

type tileStat struct {
	gray  float64
	alpha float64
}

// tileStats crops every tile of origin once and summarizes it.
func tileStats(origin *images.Image, tiling images.Tiling) ([]tileStat, error) {
	stats := make([]tileStat, tiling.Len())
	for i := range stats {
		tile, err := origin.Crop(tiling.Position(i), tiling.Tile())
		if err != nil {
			return nil, err
		}
		stats[i] = tileStat{gray: tile.MeanGrayscale(), alpha: tile.MeanAlpha()}
	}
	return stats, nil
}
