// Package repository provides the MongoDB data access layer: an L2 cache store,
// the job history archive and the alert archive.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	cacheEntriesCollection = "cache_entries"
	jobHistoryCollection   = "job_history"
	alertsCollection       = "alerts"
)

// MongoConfig holds MongoDB connection pool configuration.
type MongoConfig struct {
	// MaxPoolSize is the maximum number of connections in the pool.
	MaxPoolSize uint64
	// MinPoolSize is the minimum number of connections to keep in the pool.
	MinPoolSize uint64
	// MaxConnIdleTime is how long a connection can remain idle before being closed.
	MaxConnIdleTime time.Duration
	// ConnectTimeout is the timeout for establishing a connection.
	ConnectTimeout time.Duration
	// ServerSelectionTimeout is how long to wait for server selection.
	ServerSelectionTimeout time.Duration
	// SocketTimeout is the timeout for socket read/write operations.
	SocketTimeout time.Duration
	// EnableCompression enables wire protocol compression.
	EnableCompression bool
}

// DefaultMongoConfig returns the default connection pool configuration.
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		MaxPoolSize:            50,
		MinPoolSize:            5,
		MaxConnIdleTime:        10 * time.Minute,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 5 * time.Second,
		SocketTimeout:          30 * time.Second,
		EnableCompression:      true,
	}
}

// MongoDB provides MongoDB client and collection access.
type MongoDB struct {
	Client       *mongo.Client
	Database     *mongo.Database
	CacheEntries *mongo.Collection
	JobHistory   *mongo.Collection
	Alerts       *mongo.Collection
}

// NewMongoDB creates a new MongoDB connection with default configuration.
func NewMongoDB(uri, databaseName string) (*MongoDB, error) {
	return NewMongoDBWithConfig(uri, databaseName, DefaultMongoConfig())
}

// NewMongoDBWithConfig creates a new MongoDB connection with custom configuration.
func NewMongoDBWithConfig(uri, databaseName string, cfg MongoConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout).
		SetSocketTimeout(cfg.SocketTimeout).
		SetRetryWrites(true).
		SetRetryReads(true)

	if cfg.EnableCompression {
		clientOptions.SetCompressors([]string{"zstd", "snappy", "zlib"})
	}

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(databaseName)
	mongoDB := &MongoDB{
		Client:       client,
		Database:     db,
		CacheEntries: db.Collection(cacheEntriesCollection),
		JobHistory:   db.Collection(jobHistoryCollection),
		Alerts:       db.Collection(alertsCollection),
	}

	if err := mongoDB.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return mongoDB, nil
}

func (m *MongoDB) createIndexes(ctx context.Context) error {
	// expires_at drives MongoDB's TTL monitor; documents without it never expire.
	cacheTTLIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}
	if _, err := m.CacheEntries.Indexes().CreateOne(ctx, cacheTTLIndex); err != nil {
		return err
	}

	jobQueueIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "queue", Value: 1}, {Key: "status", Value: 1}, {Key: "finished_at", Value: -1}},
	}
	if _, err := m.JobHistory.Indexes().CreateOne(ctx, jobQueueIndex); err != nil {
		return err
	}

	jobIDIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "job_id", Value: 1}},
	}
	_, _ = m.JobHistory.Indexes().CreateOne(ctx, jobIDIndex)

	alertIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "metric", Value: 1}, {Key: "timestamp", Value: -1}},
	}
	_, _ = m.Alerts.Indexes().CreateOne(ctx, alertIndex)

	return nil
}

// SetHistoryTTL (re)creates the TTL index that expires archived jobs and alerts.
// A non-positive ttl drops the index and keeps history forever.
func (m *MongoDB) SetHistoryTTL(ctx context.Context, ttl time.Duration) error {
	for _, target := range []struct {
		coll  *mongo.Collection
		field string
	}{
		{m.JobHistory, "finished_at"},
		{m.Alerts, "timestamp"},
	} {
		indexName := target.field + "_ttl"
		_, _ = target.coll.Indexes().DropOne(ctx, indexName)

		if ttl <= 0 {
			continue
		}

		ttlIndex := mongo.IndexModel{
			Keys: bson.D{{Key: target.field, Value: 1}},
			Options: options.Index().
				SetName(indexName).
				SetExpireAfterSeconds(int32(ttl / time.Second)),
		}
		if _, err := target.coll.Indexes().CreateOne(ctx, ttlIndex); err != nil && !isIndexConflict(err) {
			return err
		}
	}
	return nil
}

func isIndexConflict(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Name == "IndexOptionsConflict" || cmdErr.Name == "IndexKeySpecsConflict"
	}
	return strings.Contains(err.Error(), "already exists")
}

// Close closes the MongoDB connection.
func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

// HealthCheck verifies the MongoDB connection is healthy.
func (m *MongoDB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return m.Client.Ping(ctx, nil)
}
