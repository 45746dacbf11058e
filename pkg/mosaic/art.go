package mosaic

import (
	"sync"
	"time"

	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/post"
)

// Art is one immutable snapshot of a mosaic. Readers may keep an Art for as
// long as they like; later applications never modify it.
type Art struct {
	ID        uint64
	Image     *images.Image
	Posts     []post.Post
	Hashtags  post.Hashtags
	Tiling    images.Tiling
	Empty     int
	CreatedAt time.Time

	pngOnce sync.Once
	png     []byte
	pngErr  error
}

// Complete reports whether every replaceable tile holds a post.
func (a *Art) Complete() bool { return a.Empty == 0 }

// PNG returns the composite encoded as PNG. The encoding is computed once
// per snapshot and shared by all callers.
func (a *Art) PNG() ([]byte, error) {
	a.pngOnce.Do(func() {
		a.png, a.pngErr = a.Image.PNG()
	})
	return a.png, a.pngErr
}
