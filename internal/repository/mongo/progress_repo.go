// internal/repository/mongo/progress_repo.go
package mongo

import (
	"context"
	"errors"
	"time"

	"gymtrack/workout-app/internal/domain"
	"gymtrack/workout-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const progressCollectionName = "progress_entries"

// mongoProgressRepository implements repository.ProgressRepository
type mongoProgressRepository struct {
	collection *mongo.Collection
}

// NewMongoProgressRepository creates a new progress journal repository.
func NewMongoProgressRepository(db *mongo.Database) repository.ProgressRepository {
	return &mongoProgressRepository{
		collection: db.Collection(progressCollectionName),
	}
}

// Append inserts progress entries. The journal is insert-only: entries are never
// updated or deleted here.
func (r *mongoProgressRepository) Append(ctx context.Context, entries []domain.ProgressEntry) error {
	if len(entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, len(entries))
	for i := range entries {
		if entries[i].UserID == primitive.NilObjectID || entries[i].Metric == "" {
			return errors.New("progress entry requires userId and metric")
		}
		entries[i].ID = primitive.NewObjectID()
		entries[i].CreatedAt = now
		docs[i] = entries[i]
	}

	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

// GetByUserID retrieves a user's entries, optionally filtered by metric and date range.
func (r *mongoProgressRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID, metric string, from, to time.Time) ([]domain.ProgressEntry, error) {
	filter := bson.M{"userId": userID}
	if metric != "" {
		filter["metric"] = metric
	}
	dateFilter := bson.M{}
	if !from.IsZero() {
		dateFilter["$gte"] = from
	}
	if !to.IsZero() {
		dateFilter["$lt"] = to
	}
	if len(dateFilter) > 0 {
		filter["date"] = dateFilter
	}

	var entries []domain.ProgressEntry
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByUserID returns the number of journal entries held for a user.
func (r *mongoProgressRepository) CountByUserID(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"userId": userID})
}

// EnsureProgressIndexes creates necessary indexes. Call during startup.
func EnsureProgressIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Time-series reads per user and metric
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "metric", Value: 1},
				{Key: "date", Value: 1},
			},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
