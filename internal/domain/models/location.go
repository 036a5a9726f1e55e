// internal/domain/models/location.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Location is a user's durably stored last-known position. It outlives
// the in-memory entry: after a user disconnects their row remains
// queryable as "offline, last seen at".
type Location struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Latitude  float64            `bson:"latitude" json:"latitude"`
	Longitude float64            `bson:"longitude" json:"longitude"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
