// Package images holds the pixel buffers the mosaic is built from.
//
// An [Image] wraps a non-premultiplied RGBA buffer of a known [Size]. Crop and
// Paste copy whole rows so that tiling a 3000x3000 origin stays cheap, and
// statistics such as [Image.MeanGrayscale] walk the raw pixel slice.
//
// Decoding supports PNG, JPEG, GIF and WebP. Resizing and encoding go
// through github.com/disintegration/imaging.
package images

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/mosaic/pkg/errors"
)

// Image is an owned NRGBA pixel buffer anchored at (0,0).
type Image struct {
	px *image.NRGBA
}

// New returns a fully transparent image of the given size.
func New(size Size) *Image {
	return &Image{px: image.NewNRGBA(image.Rect(0, 0, int(size.Width), int(size.Height)))}
}

// FromImage copies any image.Image into a new buffer anchored at the origin.
func FromImage(src image.Image) *Image {
	return &Image{px: imaging.Clone(src)}
}

// Uniform returns an image filled with a single color.
func Uniform(size Size, c color.Color) *Image {
	img := New(size)
	draw.Draw(img.px, img.px.Rect, image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// Size returns the image dimensions.
func (m *Image) Size() Size {
	b := m.px.Rect
	return Size{Width: uint32(b.Dx()), Height: uint32(b.Dy())}
}

// NRGBA exposes the underlying buffer. Callers must not mutate it.
func (m *Image) NRGBA() *image.NRGBA { return m.px }

// Clone returns a deep copy.
func (m *Image) Clone() *Image {
	px := &image.NRGBA{
		Pix:    make([]uint8, len(m.px.Pix)),
		Stride: m.px.Stride,
		Rect:   m.px.Rect,
	}
	copy(px.Pix, m.px.Pix)
	return &Image{px: px}
}

// Crop copies the rectangle at pos with the given size into a new image.
func (m *Image) Crop(pos Position, size Size) (*Image, error) {
	r := image.Rect(int(pos.X), int(pos.Y), int(pos.X+size.Width), int(pos.Y+size.Height))
	if !r.In(m.px.Rect) {
		return nil, errors.New(errors.ErrCodeInvalidSize, "crop %v outside image %s", r, m.Size())
	}
	out := New(size)
	rowLen := int(size.Width) * 4
	for y := 0; y < int(size.Height); y++ {
		src := m.px.PixOffset(r.Min.X, r.Min.Y+y)
		dst := out.px.PixOffset(0, y)
		copy(out.px.Pix[dst:dst+rowLen], m.px.Pix[src:src+rowLen])
	}
	return out, nil
}

// Paste overwrites the region at pos with src. Pixels are replaced, not blended.
func (m *Image) Paste(src *Image, pos Position) error {
	size := src.Size()
	r := image.Rect(int(pos.X), int(pos.Y), int(pos.X+size.Width), int(pos.Y+size.Height))
	if !r.In(m.px.Rect) {
		return errors.New(errors.ErrCodeInvalidSize, "paste %v outside image %s", r, m.Size())
	}
	rowLen := int(size.Width) * 4
	for y := 0; y < int(size.Height); y++ {
		s := src.px.PixOffset(0, y)
		d := m.px.PixOffset(r.Min.X, r.Min.Y+y)
		copy(m.px.Pix[d:d+rowLen], src.px.Pix[s:s+rowLen])
	}
	return nil
}

// Resize scales and center-crops the image to exactly size.
func (m *Image) Resize(size Size) *Image {
	if m.Size() == size {
		return m.Clone()
	}
	return &Image{px: imaging.Fill(m.px, int(size.Width), int(size.Height), imaging.Center, imaging.Lanczos)}
}

// MeanGrayscale returns the mean ITU-R 601 luma over all pixels, in [0, 255].
// Alpha is ignored; the weights match color.GrayModel.
func (m *Image) MeanGrayscale() float64 {
	n := m.Size().Pixels()
	if n == 0 {
		return 0
	}
	var sum uint64
	b := m.px.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := m.px.Pix[m.px.PixOffset(b.Min.X, y):m.px.PixOffset(b.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			r, g, bl := uint64(row[i]), uint64(row[i+1]), uint64(row[i+2])
			sum += (19595*r + 38470*g + 7471*bl + 1<<15) >> 16
		}
	}
	return float64(sum) / float64(n)
}

// MeanAlpha returns the mean alpha over all pixels, in [0, 255].
func (m *Image) MeanAlpha() float64 {
	n := m.Size().Pixels()
	if n == 0 {
		return 0
	}
	var sum uint64
	b := m.px.Rect
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := m.px.Pix[m.px.PixOffset(b.Min.X, y):m.px.PixOffset(b.Max.X, y)]
		for i := 3; i < len(row); i += 4 {
			sum += uint64(row[i])
		}
	}
	return float64(sum) / float64(n)
}
