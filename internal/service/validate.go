package service

import (
	"fmt"

	"gymtrack/workout-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// validateSetLog checks an exercise/set log for malformed data. Invoked before
// any transaction is opened so validation failures never touch the store.
func validateSetLog(exercises []domain.ExerciseEntry) error {
	for ei, exercise := range exercises {
		if exercise.ExerciseID == primitive.NilObjectID {
			return &ValidationError{
				Field:  fmt.Sprintf("exercises[%d].exerciseId", ei),
				Reason: "must not be empty",
			}
		}
		for si, set := range exercise.Sets {
			field := fmt.Sprintf("exercises[%d].sets[%d]", ei, si)
			if set.Weight < 0 {
				return &ValidationError{Field: field + ".weight", Reason: "must not be negative"}
			}
			if set.Reps < 0 {
				return &ValidationError{Field: field + ".reps", Reason: "must not be negative"}
			}
			if set.Completed && set.Reps == 0 {
				return &ValidationError{Field: field + ".reps", Reason: "completed set requires at least one rep"}
			}
			if set.DurationSeconds != nil && *set.DurationSeconds < 0 {
				return &ValidationError{Field: field + ".durationSeconds", Reason: "must not be negative"}
			}
		}
	}
	return nil
}
