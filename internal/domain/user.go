package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultBodyWeightKg is assumed by the calorie heuristic when a user has not
// recorded a body weight.
const DefaultBodyWeightKg = 75.0

// User represents an athlete account.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`    // Should be unique
	PasswordHash string             `bson:"passwordHash" json:"-"` // Never expose this via JSON
	BodyWeightKg float64            `bson:"bodyWeightKg,omitempty" json:"bodyWeightKg,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EffectiveBodyWeight returns the recorded body weight, or the default when none is set.
func (u *User) EffectiveBodyWeight() float64 {
	if u.BodyWeightKg > 0 {
		return u.BodyWeightKg
	}
	return DefaultBodyWeightKg
}
