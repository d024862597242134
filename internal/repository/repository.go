package repository

import (
	"context"
	"time"

	"gymtrack/workout-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for the repository layer.
var (
	ErrNotFound  = RepositoryError("not found")
	ErrConflict  = RepositoryError("conditional write matched no document")
	ErrDuplicate = RepositoryError("duplicate key")
	ErrTxAborted = RepositoryError("transaction aborted") // Transient; safe to retry
)

// RepositoryError helps distinguish repository errors.
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// TxRunner executes fn inside one atomic unit of work. The context passed to fn
// is transaction-scoped and must be handed to every store call that should be
// enlisted; fn returning an error aborts the transaction and nothing persists.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// SessionRepository owns workout-session documents.
type SessionRepository interface {
	Create(ctx context.Context, session *domain.WorkoutSession) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.WorkoutSession, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID, limit int64) ([]domain.WorkoutSession, error)
	// ReplaceSets swaps the exercise/set log of a session that is still in progress.
	// Returns ErrConflict when the session is no longer in progress.
	ReplaceSets(ctx context.Context, id primitive.ObjectID, exercises []domain.ExerciseEntry) error
	// FinishInProgress persists the terminal form of the session, conditional on the
	// stored status still being in_progress at write time. Returns ErrConflict when
	// the condition no longer holds (the CAS guard against concurrent completion).
	FinishInProgress(ctx context.Context, session *domain.WorkoutSession) error
}

// RecordRepository owns the current personal-record fact per
// (user, exercise, record type) key.
type RecordRepository interface {
	// GetCurrent returns the current record for a key, or ErrNotFound.
	GetCurrent(ctx context.Context, userID, exerciseID primitive.ObjectID, recordType domain.RecordType) (*domain.Record, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Record, error)
	// Save reads the current slot for the record's key, moves its value into the new
	// record's previous snapshot, and writes the new record over the slot. The
	// read-then-write is atomic within the enclosing transaction.
	Save(ctx context.Context, record *domain.Record) error
	CountByUserID(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

// ProgressRepository is the append-only progress time series.
type ProgressRepository interface {
	Append(ctx context.Context, entries []domain.ProgressEntry) error
	GetByUserID(ctx context.Context, userID primitive.ObjectID, metric string, from, to time.Time) ([]domain.ProgressEntry, error)
	CountByUserID(ctx context.Context, userID primitive.ObjectID) (int64, error)
}
