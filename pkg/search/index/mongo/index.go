// Package mongo implements search.Index on a MongoDB text index.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-social/pkg/apperror"
	"github.com/tendant/simple-social/pkg/search"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultCollection          = "search_posts"
	DefaultTombstoneCollection = "search_tombstones"
	DefaultTombstoneRetention  = 7 * 24 * time.Hour
)

type projectionDoc struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"ownerId"`
	Text      string    `bson:"text"`
	CreatedAt time.Time `bson:"createdAt"`
	Score     float64   `bson:"score,omitempty"`
}

type tombstoneDoc struct {
	ID        string    `bson:"_id"`
	DeletedAt time.Time `bson:"deletedAt"`
}

// Config names the collections. Zero values use the defaults.
type Config struct {
	Collection          string
	TombstoneCollection string
	// TombstoneRetention bounds how long a removed id blocks late inserts.
	TombstoneRetention time.Duration
}

// Index implements search.Index.
type Index struct {
	posts      *mongo.Collection
	tombstones *mongo.Collection
	retention  time.Duration
}

func New(db *mongo.Database, cfg Config) *Index {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.TombstoneCollection == "" {
		cfg.TombstoneCollection = DefaultTombstoneCollection
	}
	if cfg.TombstoneRetention <= 0 {
		cfg.TombstoneRetention = DefaultTombstoneRetention
	}
	return &Index{
		posts:      db.Collection(cfg.Collection),
		tombstones: db.Collection(cfg.TombstoneCollection),
		retention:  cfg.TombstoneRetention,
	}
}

// EnsureIndexes creates the text index and the tombstone expiry index.
func (ix *Index) EnsureIndexes(ctx context.Context) error {
	_, err := ix.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "text", Value: "text"}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create search indexes: %w", err)
	}
	_, err = ix.tombstones.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "deletedAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(ix.retention / time.Second)),
	})
	if err != nil {
		return fmt.Errorf("create tombstone index: %w", err)
	}
	return nil
}

// Insert upserts with $setOnInsert so an existing projection is never
// overwritten, then checks for a tombstone. Remove writes its tombstone
// before deleting, so whichever of the two runs last sees the other's write.
func (ix *Index) Insert(ctx context.Context, p search.Projection) (bool, error) {
	id := p.ContentID.String()

	res, err := ix.posts.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$setOnInsert": bson.M{
			"ownerId":   p.OwnerID.String(),
			"text":      p.Text,
			"createdAt": p.CreatedAt.UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, transport("search.mongo.insert", err)
	}

	removed, err := ix.isRemoved(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		if _, err := ix.posts.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			return false, transport("search.mongo.insert", err)
		}
		return false, nil
	}
	return res.UpsertedCount == 1, nil
}

func (ix *Index) Remove(ctx context.Context, contentID uuid.UUID) (bool, error) {
	id := contentID.String()

	_, err := ix.tombstones.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"deletedAt": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, transport("search.mongo.remove", err)
	}

	res, err := ix.posts.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, transport("search.mongo.remove", err)
	}
	return res.DeletedCount == 1, nil
}

func (ix *Index) Search(ctx context.Context, query string, limit int) ([]search.Result, error) {
	opts := options.Find().
		SetProjection(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetSort(bson.D{
			{Key: "score", Value: bson.M{"$meta": "textScore"}},
			{Key: "createdAt", Value: -1},
		}).
		SetLimit(int64(limit))

	cur, err := ix.posts.Find(ctx, bson.M{"$text": bson.M{"$search": query}}, opts)
	if err != nil {
		return nil, transport("search.mongo.search", err)
	}
	defer cur.Close(ctx)

	var docs []projectionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, transport("search.mongo.search", err)
	}

	results := make([]search.Result, 0, len(docs))
	for _, d := range docs {
		contentID, err := uuid.Parse(d.ID)
		if err != nil {
			continue
		}
		ownerID, _ := uuid.Parse(d.OwnerID)
		results = append(results, search.Result{
			Projection: search.Projection{
				ContentID: contentID,
				OwnerID:   ownerID,
				Text:      d.Text,
				CreatedAt: d.CreatedAt,
			},
			Score: d.Score,
		})
	}
	return results, nil
}

func (ix *Index) isRemoved(ctx context.Context, id string) (bool, error) {
	var t tombstoneDoc
	err := ix.tombstones.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, transport("search.mongo.tombstone", err)
	}
	return true, nil
}

func transport(op string, err error) error {
	return apperror.Transport(op, err)
}
