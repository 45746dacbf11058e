// Package store persists posts so a restarted worker can rebuild its mosaic
// and so feed items are never applied twice.
//
// Implementations:
//   - [Mongo]: MongoDB collection, one document per post
//   - [Memory]: process-local, for tests and --memory mode
//   - [Cached]: decorator answering Contains from a shared [cache.Cache]
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/post"
)

// Store is safe for concurrent use by many workers.
type Store interface {
	// Contains reports whether a feed post with id was already stored.
	Contains(ctx context.Context, id string) (bool, error)
	// FindByHashtags returns up to limit posts tagged with any of tags,
	// newest first, with images scaled to size.
	FindByHashtags(ctx context.Context, tags []string, limit int, size images.Size) ([]post.Post, error)
	// Insert stores p. Inserting a feed id that already exists is not an error.
	Insert(ctx context.Context, p post.Post) error
	Close(ctx context.Context) error
}

// Post sources as persisted.
const (
	SourceFeed   = "feed"
	SourceDirect = "direct"
)

// Record is the storage form of a post.
type Record struct {
	ID         string
	UserName   string
	Hashtag    string
	ImageURL   string
	PNG        []byte
	Source     string
	InsertedAt time.Time
}

// NewRecord encodes p for storage. Direct posts get a random id.
func NewRecord(p post.Post) (Record, error) {
	data, err := p.Image().PNG()
	if err != nil {
		return Record{}, err
	}
	r := Record{
		UserName:   p.UserName(),
		Hashtag:    p.Hashtag(),
		PNG:        data,
		Source:     SourceDirect,
		InsertedAt: time.Now().UTC(),
	}
	if id, ok := p.ID(); ok {
		r.ID = id
		r.Source = SourceFeed
		if fp, ok := p.(*post.FeedPost); ok {
			r.ImageURL = fp.ImageURL
		}
	} else {
		r.ID = uuid.NewString()
	}
	return r, nil
}

// Post decodes the record back into a post scaled to size.
func (r Record) Post(size images.Size) (post.Post, error) {
	img, err := images.Decode(r.PNG)
	if err != nil {
		return nil, err
	}
	if img.Size() != size {
		img = img.Resize(size)
	}
	if r.Source == SourceDirect {
		return &post.DirectPost{Img: img, User: r.UserName, Tag: r.Hashtag}, nil
	}
	return &post.FeedPost{
		PostID:   r.ID,
		Img:      img,
		User:     r.UserName,
		Tag:      r.Hashtag,
		ImageURL: r.ImageURL,
		Fetched:  r.InsertedAt,
	}, nil
}
