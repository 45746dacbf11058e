package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/matzehuels/mosaic/pkg/errors"
	"github.com/matzehuels/mosaic/pkg/images"
	"github.com/matzehuels/mosaic/pkg/post"
)

// Mongo defaults.
const (
	DefaultDatabase   = "mosaic"
	DefaultCollection = "posts"
)

// MongoConfig locates the post collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// Mongo stores one document per post.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

type document struct {
	ID           string        `bson:"id"`
	UserName     string        `bson:"username"`
	Image        imageDocument `bson:"image"`
	Hashtag      string        `bson:"hashtag"`
	Source       string        `bson:"source"`
	InsertedTime time.Time     `bson:"inserted_time"`
}

type imageDocument struct {
	URL    string `bson:"url,omitempty"`
	Binary []byte `bson:"binary"`
}

// NewMongo connects, pings and ensures the unique index on id.
func NewMongo(ctx context.Context, cfg MongoConfig) (*Mongo, error) {
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		opts.SetConnectTimeout(cfg.Timeout).SetServerSelectionTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "connect mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "ping mongo")
	}

	m := &Mongo{client: client, coll: client.Database(cfg.Database).Collection(cfg.Collection)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

// NewMongoFromCollection wraps an existing collection. Indexes are assumed
// to exist and Close leaves the client connected.
func NewMongoFromCollection(coll *mongo.Collection) *Mongo {
	return &Mongo{coll: coll}
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "hashtag", Value: 1}, {Key: "inserted_time", Value: -1}}},
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "create indexes")
	}
	return nil
}

func (m *Mongo) Contains(ctx context.Context, id string) (bool, error) {
	n, err := m.coll.CountDocuments(ctx, bson.D{{Key: "id", Value: id}}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeStorage, err, "count post %s", id)
	}
	return n > 0, nil
}

func (m *Mongo) FindByHashtags(ctx context.Context, tags []string, limit int, size images.Size) ([]post.Post, error) {
	if len(tags) == 0 || limit <= 0 {
		return nil, nil
	}
	filter := bson.D{{Key: "hashtag", Value: bson.D{{Key: "$in", Value: tags}}}}
	opts := options.Find().
		SetSort(bson.D{{Key: "inserted_time", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := m.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "find posts")
	}
	var docs []document
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "read posts")
	}

	out := make([]post.Post, 0, len(docs))
	for _, d := range docs {
		p, err := d.record().Post(size)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *Mongo) Insert(ctx context.Context, p post.Post) error {
	r, err := NewRecord(p)
	if err != nil {
		return err
	}
	if _, err := m.coll.InsertOne(ctx, newDocument(r)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return errors.Wrap(errors.ErrCodeStorage, err, "insert post %s", r.ID)
	}
	return nil
}

func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

func newDocument(r Record) document {
	return document{
		ID:           r.ID,
		UserName:     r.UserName,
		Image:        imageDocument{URL: r.ImageURL, Binary: r.PNG},
		Hashtag:      r.Hashtag,
		Source:       r.Source,
		InsertedTime: r.InsertedAt,
	}
}

func (d document) record() Record {
	return Record{
		ID:         d.ID,
		UserName:   d.UserName,
		Hashtag:    d.Hashtag,
		ImageURL:   d.Image.URL,
		PNG:        d.Image.Binary,
		Source:     d.Source,
		InsertedAt: d.InsertedTime,
	}
}

var _ Store = (*Mongo)(nil)
