// internal/repository/mongo/record_repo.go
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

const recordCollectionName = "personal_records"

// mongoRecordRepository implements repository.RecordRepository
type mongoRecordRepository struct {
	collection *mongo.Collection
}

// NewMongoRecordRepository creates a new personal-record ledger repository.
func NewMongoRecordRepository(db *mongo.Database) repository.RecordRepository {
	return &mongoRecordRepository{
		collection: db.Collection(recordCollectionName),
	}
}

func recordKeyFilter(userID, exerciseID primitive.ObjectID, recordType domain.RecordType) bson.M {
	return bson.M{
		"userId":     userID,
		"exerciseId": exerciseID,
		"type":       recordType,
	}
}

// GetCurrent retrieves the current record for a (user, exercise, type) key.
func (r *mongoRecordRepository) GetCurrent(ctx context.Context, userID, exerciseID primitive.ObjectID, recordType domain.RecordType) (*domain.Record, error) {
	var record domain.Record
	err := r.collection.FindOne(ctx, recordKeyFilter(userID, exerciseID, recordType)).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// GetByUserID retrieves all current records for a user.
func (r *mongoRecordRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Record, error) {
	var records []domain.Record
	filter := bson.M{"userId": userID}
	findOptions := options.Find().SetSort(bson.D{{Key: "exerciseId", Value: 1}, {Key: "type", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Save writes a record over the current slot for its key, moving the old value
// into the record's previous snapshot. The read-then-write pair is atomic when
// ctx carries an enclosing transaction; the unique key index backstops races
// from writers outside one.
func (r *mongoRecordRepository) Save(ctx context.Context, record *domain.Record) error {
	if record.UserID == primitive.NilObjectID || record.ExerciseID == primitive.NilObjectID || record.Type == "" {
		return errors.New("record requires userId, exerciseId, and type")
	}

	current, err := r.GetCurrent(ctx, record.UserID, record.ExerciseID, record.Type)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	record.Supersede(current)

	now := time.Now().UTC()
	record.UpdatedAt = now
	if current != nil {
		record.ID = current.ID
		record.CreatedAt = current.CreatedAt
	} else {
		record.ID = primitive.NewObjectID()
		record.CreatedAt = now
	}

	replaceOptions := options.Replace().SetUpsert(true)
	_, err = r.collection.ReplaceOne(ctx, recordKeyFilter(record.UserID, record.ExerciseID, record.Type), record, replaceOptions)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	return nil
}

// CountByUserID returns the number of current records held by a user.
func (r *mongoRecordRepository) CountByUserID(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"userId": userID})
}

// EnsureRecordIndexes creates necessary indexes. Call during startup.
func EnsureRecordIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// At most one current record per (user, exercise, type) key
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "exerciseId", Value: 1},
				{Key: "type", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
