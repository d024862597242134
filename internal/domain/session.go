package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SessionStatus type for the workout session lifecycle.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed" // Terminal
	SessionAborted    SessionStatus = "aborted"   // Terminal
)

// IsTerminal reports whether the status allows no further transitions.
// Once a session is completed or aborted its sets and metrics are immutable.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionAborted
}

// SetEntry is one logged set within an exercise entry.
type SetEntry struct {
	Weight           float64 `bson:"weight" json:"weight"`                             // kg
	Reps             int     `bson:"reps" json:"reps"`
	DurationSeconds  *int    `bson:"durationSeconds,omitempty" json:"durationSeconds,omitempty"` // Optional, for timed sets
	Completed        bool    `bson:"completed" json:"completed"`
	IsPersonalRecord bool    `bson:"isPersonalRecord" json:"isPersonalRecord"` // Set by the completion engine only
}

// Volume is weight x reps for this one set.
func (s SetEntry) Volume() float64 {
	return s.Weight * float64(s.Reps)
}

// ExerciseEntry is one exercise within a session, holding its ordered sets.
type ExerciseEntry struct {
	ExerciseID primitive.ObjectID `bson:"exerciseId" json:"exerciseId"`
	Name       string             `bson:"name" json:"name"`
	Sets       []SetEntry         `bson:"sets" json:"sets"`
}

// SessionMetrics holds the aggregates the completion engine derives.
// Invariant: TotalVolume == sum of Volume() over all sets with Completed == true.
type SessionMetrics struct {
	TotalVolume     float64 `bson:"totalVolume" json:"totalVolume"`
	TotalReps       int     `bson:"totalReps" json:"totalReps"`
	CaloriesBurned  float64 `bson:"caloriesBurned" json:"caloriesBurned"`
	PersonalRecords int     `bson:"personalRecords" json:"personalRecords"`
}

// WorkoutSession represents one workout attempt, from start to completion or abort.
// Created in in_progress status; mutated only by set logging while in progress and
// by the completion/abort paths, after which it is immutable.
type WorkoutSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	RoutineID primitive.ObjectID `bson:"routineId,omitempty" json:"routineId,omitempty"` // Reference only; routine authoring lives elsewhere
	Name      string             `bson:"name" json:"name"`                               // e.g. "Push Day A"
	Status    SessionStatus      `bson:"status" json:"status"`
	StartTime time.Time          `bson:"startTime" json:"startTime"`
	EndTime   *time.Time         `bson:"endTime,omitempty" json:"endTime,omitempty"`
	DurationSeconds int64        `bson:"durationSeconds" json:"durationSeconds"` // EndTime - StartTime, set at completion
	Exercises []ExerciseEntry    `bson:"exercises" json:"exercises"`
	Metrics   SessionMetrics     `bson:"metrics" json:"metrics"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// CompletedSetCount returns the number of sets marked completed, across all exercises.
func (w *WorkoutSession) CompletedSetCount() int {
	n := 0
	for _, ex := range w.Exercises {
		for _, set := range ex.Sets {
			if set.Completed {
				n++
			}
		}
	}
	return n
}
