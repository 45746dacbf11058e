package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/mosaic/pkg/cache"
	"github.com/matzehuels/mosaic/pkg/errors"
)

func TestNewTiling(t *testing.T) {
	tests := []struct {
		name    string
		origin  Size
		tile    Size
		wantErr bool
		numX    int
		numY    int
	}{
		{name: "square", origin: Square(3000), tile: Square(100), numX: 30, numY: 30},
		{name: "original default", origin: Square(1500), tile: Square(30), numX: 50, numY: 50},
		{name: "rectangular", origin: Size{Width: 200, Height: 100}, tile: Size{Width: 50, Height: 25}, numX: 4, numY: 4},
		{name: "not divisible", origin: Square(100), tile: Square(30), wantErr: true},
		{name: "zero tile", origin: Square(100), tile: Size{}, wantErr: true},
		{name: "tile larger", origin: Square(10), tile: Square(20), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl, err := NewTiling(tt.origin, tt.tile)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeInvalidSize) {
					t.Fatalf("NewTiling() error = %v, want %s", err, errors.ErrCodeInvalidSize)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTiling() error = %v", err)
			}
			if tl.NumX() != tt.numX || tl.NumY() != tt.numY {
				t.Errorf("grid = %dx%d, want %dx%d", tl.NumX(), tl.NumY(), tt.numX, tt.numY)
			}
			if tl.Len() != tt.numX*tt.numY {
				t.Errorf("Len() = %d, want %d", tl.Len(), tt.numX*tt.numY)
			}
		})
	}
}

func TestTilingPositions(t *testing.T) {
	tl, _ := NewTiling(Size{Width: 300, Height: 200}, Size{Width: 100, Height: 50})

	seen := map[Position]bool{}
	for i := 0; i < tl.Len(); i++ {
		p := tl.Position(i)
		if p.X+100 > 300 || p.Y+50 > 200 {
			t.Errorf("tile %d at %+v exceeds origin", i, p)
		}
		if seen[p] {
			t.Errorf("tile %d position %+v repeated", i, p)
		}
		seen[p] = true
	}
	if got := tl.Position(4); got != (Position{X: 100, Y: 50}) {
		t.Errorf("Position(4) = %+v, want {100 50}", got)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    Size
		wantErr bool
	}{
		{in: "30x20", want: Size{Width: 30, Height: 20}},
		{in: "50", want: Square(50)},
		{in: " 8X8 ", want: Square(8)},
		{in: "0x5", wantErr: true},
		{in: "x", wantErr: true},
		{in: "ten", wantErr: true},
		{in: "-1x2", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				if !errors.Is(err, errors.ErrCodeInvalidSize) {
					t.Errorf("ParseSize(%q) error = %v, want INVALID_SIZE", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseSize(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestDefaultTileSize(t *testing.T) {
	if got := DefaultTileSize(Square(1500)); got != Square(30) {
		t.Errorf("DefaultTileSize(1500) = %s", got)
	}
	if got := DefaultTileSize(Square(3000)); got != Square(50) {
		t.Errorf("DefaultTileSize(3000) = %s", got)
	}
}

func TestCropPaste(t *testing.T) {
	canvas := New(Square(4))
	red := Uniform(Square(2), color.NRGBA{R: 255, A: 255})

	if err := canvas.Paste(red, Position{X: 2, Y: 2}); err != nil {
		t.Fatalf("Paste: %v", err)
	}
	if got := canvas.NRGBA().NRGBAAt(3, 3); got != (color.NRGBA{R: 255, A: 255}) {
		t.Errorf("pixel (3,3) = %v, want red", got)
	}
	if got := canvas.NRGBA().NRGBAAt(1, 1); got.A != 0 {
		t.Errorf("pixel (1,1) = %v, want transparent", got)
	}

	tile, err := canvas.Crop(Position{X: 2, Y: 2}, Square(2))
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if !bytes.Equal(tile.NRGBA().Pix, red.NRGBA().Pix) {
		t.Error("cropped tile should equal the pasted one")
	}

	if _, err := canvas.Crop(Position{X: 3, Y: 3}, Square(2)); err == nil {
		t.Error("out-of-bounds crop should fail")
	}
	if err := canvas.Paste(red, Position{X: 3, Y: 0}); err == nil {
		t.Error("out-of-bounds paste should fail")
	}
}

func TestPasteOverwrites(t *testing.T) {
	canvas := Uniform(Square(2), color.NRGBA{B: 255, A: 255})
	half := Uniform(Square(2), color.NRGBA{R: 255, A: 128})
	canvas.Paste(half, Position{})
	if got := canvas.NRGBA().NRGBAAt(0, 0); got != (color.NRGBA{R: 255, A: 128}) {
		t.Errorf("paste should overwrite without blending, got %v", got)
	}
}

func TestMeans(t *testing.T) {
	tests := []struct {
		name      string
		c         color.NRGBA
		wantGray  float64
		wantAlpha float64
	}{
		{"white", color.NRGBA{255, 255, 255, 255}, 255, 255},
		{"black", color.NRGBA{0, 0, 0, 255}, 0, 255},
		{"transparent", color.NRGBA{}, 0, 0},
		{"gray 128", color.NRGBA{128, 128, 128, 255}, 128, 255},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := Uniform(Square(3), tt.c)
			if got := img.MeanGrayscale(); got != tt.wantGray {
				t.Errorf("MeanGrayscale() = %v, want %v", got, tt.wantGray)
			}
			if got := img.MeanAlpha(); got != tt.wantAlpha {
				t.Errorf("MeanAlpha() = %v, want %v", got, tt.wantAlpha)
			}
		})
	}
}

func TestClone(t *testing.T) {
	a := Uniform(Square(2), color.NRGBA{G: 10, A: 255})
	b := a.Clone()
	b.Paste(Uniform(Square(1), color.NRGBA{}), Position{})
	if a.NRGBA().NRGBAAt(0, 0).A != 255 {
		t.Error("mutating a clone must not touch the original")
	}
}

func TestPNGRoundTrip(t *testing.T) {
	src := Uniform(Size{Width: 5, Height: 3}, color.NRGBA{R: 1, G: 2, B: 3, A: 200})
	data, err := src.PNG()
	if err != nil {
		t.Fatalf("PNG: %v", err)
	}
	got, err := DecodeSized(data, Size{Width: 5, Height: 3})
	if err != nil {
		t.Fatalf("DecodeSized: %v", err)
	}
	if !bytes.Equal(got.NRGBA().Pix, src.NRGBA().Pix) {
		t.Error("PNG round trip changed pixels")
	}
	if _, err := DecodeSized(data, Square(5)); !errors.Is(err, errors.ErrCodeInvalidSize) {
		t.Errorf("wrong size error = %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte("not an image")); !errors.Is(err, errors.ErrCodeDecode) {
		t.Errorf("Decode() error = %v, want %s", err, errors.ErrCodeDecode)
	}
	if _, err := DecodeBase64("%%%"); !errors.Is(err, errors.ErrCodeDecode) {
		t.Errorf("DecodeBase64() error = %v, want %s", err, errors.ErrCodeDecode)
	}
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetcher(t *testing.T) {
	var hits atomic.Int32
	body := jpegBytes(t, 64, 48)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ok.jpg":
			w.Write(body)
		case "/junk.jpg":
			w.Write([]byte("junk"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fc, _ := cache.NewFileCache(t.TempDir())
	f := NewFetcher(fc, time.Hour, WithHTTPClient(server.Client()))
	ctx := context.Background()

	img, err := f.Fetch(ctx, server.URL+"/ok.jpg", Square(16))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if img.Size() != Square(16) {
		t.Errorf("size = %s, want 16x16", img.Size())
	}

	if _, err := f.Fetch(ctx, server.URL+"/ok.jpg", Square(8)); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1 (second fetch cached)", n)
	}

	if _, err := f.Fetch(ctx, server.URL+"/junk.jpg", Square(8)); !errors.Is(err, errors.ErrCodeDecode) {
		t.Errorf("junk error = %v, want %s", err, errors.ErrCodeDecode)
	}
	if _, err := f.Fetch(ctx, server.URL+"/missing.jpg", Square(8)); !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("missing error = %v, want %s", err, errors.ErrCodeNetwork)
	}
	if _, err := f.Fetch(ctx, "file:///etc/passwd", Square(8)); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("bad scheme error = %v", err)
	}
}
