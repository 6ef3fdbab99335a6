package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// JobDocument is an archived terminal job.
type JobDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	JobID       string             `bson:"job_id" json:"job_id"`
	Queue       string             `bson:"queue" json:"queue"`
	Priority    string             `bson:"priority" json:"priority"`
	Status      string             `bson:"status" json:"status"`
	Attempts    int                `bson:"attempts" json:"attempts"`
	MaxAttempts int                `bson:"max_attempts" json:"max_attempts"`
	Payload     interface{}        `bson:"payload,omitempty" json:"payload,omitempty"`
	LastError   string             `bson:"last_error,omitempty" json:"last_error,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	FinishedAt  time.Time          `bson:"finished_at" json:"finished_at"`
	DurationMs  int64              `bson:"duration_ms" json:"duration_ms"`
}

// JobHistoryRepository stores terminal jobs in the job_history collection.
type JobHistoryRepository struct {
	collection *mongo.Collection
}

// NewJobHistoryRepository creates a new job history repository.
func NewJobHistoryRepository(db *MongoDB) *JobHistoryRepository {
	return &JobHistoryRepository{
		collection: db.JobHistory,
	}
}

// Insert archives a job document.
func (r *JobHistoryRepository) Insert(ctx context.Context, doc *JobDocument) error {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.FinishedAt.IsZero() {
		doc.FinishedAt = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, doc)
	return err
}

// JobHistoryQuery provides options for querying archived jobs.
type JobHistoryQuery struct {
	Queue  string
	Status string
	Since  *time.Time
	Limit  int
}

func (q JobHistoryQuery) filter() bson.M {
	filter := bson.M{}
	if q.Queue != "" {
		filter["queue"] = q.Queue
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Since != nil {
		filter["finished_at"] = bson.M{"$gte": *q.Since}
	}
	return filter
}

// Query returns archived jobs, newest first.
func (r *JobHistoryRepository) Query(ctx context.Context, q JobHistoryQuery) ([]*JobDocument, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "finished_at", Value: -1}})
	if q.Limit > 0 {
		findOptions.SetLimit(int64(q.Limit))
	}

	cursor, err := r.collection.Find(ctx, q.filter(), findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []*JobDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Count returns the number of archived jobs matching q.
func (r *JobHistoryRepository) Count(ctx context.Context, q JobHistoryQuery) (int64, error) {
	return r.collection.CountDocuments(ctx, q.filter())
}
