package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CacheEntryDocument is a shared cache entry stored in MongoDB.
type CacheEntryDocument struct {
	Key       string     `bson:"_id"`
	Value     []byte     `bson:"value"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
	UpdatedAt time.Time  `bson:"updated_at"`
}

// CacheEntriesRepository is an L2 cache store backed by the cache_entries
// collection. MongoDB's TTL monitor removes expired documents lazily, so reads
// filter on expires_at as well.
type CacheEntriesRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewCacheEntriesRepository creates a new cache entries repository.
func NewCacheEntriesRepository(db *MongoDB) *CacheEntriesRepository {
	return &CacheEntriesRepository{
		collection: db.CacheEntries,
		now:        time.Now,
	}
}

// Get returns the value stored under key and its remaining TTL.
func (r *CacheEntriesRepository) Get(ctx context.Context, key string) ([]byte, time.Duration, bool, error) {
	now := r.now()
	filter := bson.M{
		"_id": key,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"expires_at": bson.M{"$gt": now}},
		},
	}

	var doc CacheEntryDocument
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, err
	}

	var ttl time.Duration
	if doc.ExpiresAt != nil {
		ttl = doc.ExpiresAt.Sub(now)
	}
	return doc.Value, ttl, true, nil
}

// Set upserts the value under key. A zero ttl stores it without expiry.
func (r *CacheEntriesRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := r.now()
	doc := CacheEntryDocument{
		Key:       key,
		Value:     value,
		UpdatedAt: now,
	}
	if ttl > 0 {
		expiresAt := now.Add(ttl)
		doc.ExpiresAt = &expiresAt
	}

	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

// DeleteByPrefix removes every entry whose key starts with prefix.
func (r *CacheEntriesRepository) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, prefixFilter(prefix))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Ping verifies the database is reachable.
func (r *CacheEntriesRepository) Ping(ctx context.Context) error {
	return r.collection.Database().Client().Ping(ctx, nil)
}

// Close is a no-op; the MongoDB connection is owned by whoever created it.
func (r *CacheEntriesRepository) Close() error {
	return nil
}

// prefixFilter matches keys that start with prefix. The anchored, quoted
// regex lets MongoDB use the _id index.
func prefixFilter(prefix string) bson.M {
	return bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
}
