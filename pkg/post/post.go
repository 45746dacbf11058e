// Package post defines the posts a mosaic is assembled from.
//
// A [FeedPost] comes from the polled social feed and carries a stable id used
// for deduplication. A [DirectPost] is submitted through the API and is
// always accepted. Both carry an image already scaled to tile size.
package post

import (
	"time"

	"github.com/matzehuels/mosaic/pkg/images"
)

// Post is a candidate tile image with attribution.
type Post interface {
	Image() *images.Image
	UserName() string
	Hashtag() string
	// ID returns the feed id and true for feed posts, "" and false otherwise.
	ID() (string, bool)
}

// FeedPost is a post retrieved from the social feed.
type FeedPost struct {
	PostID   string
	Img      *images.Image
	User     string
	Tag      string
	ImageURL string
	Fetched  time.Time
}

func (p *FeedPost) Image() *images.Image { return p.Img }
func (p *FeedPost) UserName() string     { return p.User }
func (p *FeedPost) Hashtag() string      { return p.Tag }
func (p *FeedPost) ID() (string, bool)   { return p.PostID, true }

// DirectPost is a post submitted directly by a user.
type DirectPost struct {
	Img  *images.Image
	User string
	Tag  string
}

func (p *DirectPost) Image() *images.Image { return p.Img }
func (p *DirectPost) UserName() string     { return p.User }
func (p *DirectPost) Hashtag() string      { return p.Tag }
func (p *DirectPost) ID() (string, bool)   { return "", false }

var (
	_ Post = (*FeedPost)(nil)
	_ Post = (*DirectPost)(nil)
)
