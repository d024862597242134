package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MetricSource says where a progress entry came from.
type MetricSource string

const (
	SourceManual   MetricSource = "manual"
	SourceWorkout  MetricSource = "workout"
	SourceWearable MetricSource = "wearable"
	SourceImport   MetricSource = "import"
)

// Metric keys and units written by the completion engine.
const (
	MetricExerciseVolume = "exercise_volume"  // One entry per exercise in a completed session
	MetricWorkoutVolume  = "workout_volume"   // Session-level total
	MetricWorkoutDuration = "workout_duration" // Session-level, minutes

	UnitKilograms = "kg"
	UnitMinutes   = "min"
)

// ProgressContext links an entry back to what produced it.
type ProgressContext struct {
	SessionID  *primitive.ObjectID `bson:"sessionId,omitempty" json:"sessionId,omitempty"`
	ExerciseID *primitive.ObjectID `bson:"exerciseId,omitempty" json:"exerciseId,omitempty"`
	Notes      string              `bson:"notes,omitempty" json:"notes,omitempty"`
}

// ProgressEntry is one point in a user's progress time series.
// Append-only: never mutated or deleted by the completion engine.
type ProgressEntry struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID   primitive.ObjectID `bson:"userId" json:"userId"`
	Category string             `bson:"category" json:"category"` // e.g. "strength", "workout"
	Metric   string             `bson:"metric" json:"metric"`
	Date     time.Time          `bson:"date" json:"date"`
	Value    float64            `bson:"value" json:"value"`
	Unit     string             `bson:"unit" json:"unit"`
	Context  ProgressContext    `bson:"context,omitempty" json:"context,omitempty"`
	Source   MetricSource       `bson:"source" json:"source"`
	CreatedAt time.Time         `bson:"createdAt" json:"createdAt"`
}
