package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RecordType distinguishes what kind of personal record a ledger entry tracks.
type RecordType string

const (
	RecordWeight   RecordType = "weight"   // Best single-rep weight (kg)
	RecordVolume   RecordType = "volume"   // Best single-set volume (kg, weight x reps)
	RecordReps     RecordType = "reps"     // Best rep count at any weight
	RecordDuration RecordType = "duration" // Longest timed set (seconds)
)

// RecordSnapshot preserves the value a record superseded. History is this single
// previous pointer, not a full chain.
type RecordSnapshot struct {
	Value      float64   `bson:"value" json:"value"`
	AchievedAt time.Time `bson:"achievedAt" json:"achievedAt"`
}

// Record is the current personal-record fact for a (user, exercise, type) key.
// At most one current Record exists per key; the ledger enforces this with a
// unique index and supersede-on-write semantics.
type Record struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	ExerciseID primitive.ObjectID `bson:"exerciseId" json:"exerciseId"`
	Type       RecordType         `bson:"type" json:"type"`
	Value      float64            `bson:"value" json:"value"`
	AchievedAt time.Time          `bson:"achievedAt" json:"achievedAt"`
	SessionID  primitive.ObjectID `bson:"sessionId" json:"sessionId"` // Originating session
	Previous   *RecordSnapshot    `bson:"previous,omitempty" json:"previous,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Supersede captures the given current record (may be nil) as this record's
// previous snapshot. Used by the ledger when writing over the current slot.
func (r *Record) Supersede(current *Record) {
	if current == nil {
		r.Previous = nil
		return
	}
	r.Previous = &RecordSnapshot{
		Value:      current.Value,
		AchievedAt: current.AchievedAt,
	}
}
