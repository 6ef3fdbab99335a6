package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AlertDocument is an archived threshold alert.
type AlertDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Metric    string             `bson:"metric" json:"metric"`
	Value     float64            `bson:"value" json:"value"`
	Threshold float64            `bson:"threshold" json:"threshold"`
	Severity  string             `bson:"severity" json:"severity"`
	Tags      map[string]string  `bson:"tags,omitempty" json:"tags,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// AlertsRepository stores alerts in the alerts collection.
type AlertsRepository struct {
	collection *mongo.Collection
}

// NewAlertsRepository creates a new alerts repository.
func NewAlertsRepository(db *MongoDB) *AlertsRepository {
	return &AlertsRepository{
		collection: db.Alerts,
	}
}

// Insert archives an alert.
func (r *AlertsRepository) Insert(ctx context.Context, doc *AlertDocument) error {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now()
	}

	_, err := r.collection.InsertOne(ctx, doc)
	return err
}

// Recent returns the newest alerts, optionally restricted to one metric.
func (r *AlertsRepository) Recent(ctx context.Context, metric string, limit int) ([]*AlertDocument, error) {
	filter := bson.M{}
	if metric != "" {
		filter["metric"] = metric
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var docs []*AlertDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// CountBySeverity returns the number of archived alerts per severity.
func (r *AlertsRepository) CountBySeverity(ctx context.Context) (map[string]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$severity"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	var rows []struct {
		Severity string `bson:"_id"`
		Count    int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Severity] = row.Count
	}
	return counts, nil
}
