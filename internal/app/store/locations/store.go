// internal/app/store/locations/store.go
package locations

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/crewhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store manages durably persisted last-known user locations.
type Store struct {
	c *mongo.Collection
}

// New creates a new locations Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("locations")}
}

// EnsureIndexes creates necessary indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		// One row per user; the flush upserts against this key.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_locations_user").SetUnique(true),
		},
		// Recency queries ("last seen" ordering).
		{
			Keys:    bson.D{{Key: "updated_at", Value: -1}},
			Options: options.Index().SetName("idx_locations_updated"),
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Upsert stores the user's last-known position, replacing any prior
// row for that user. Upserting the same coordinates twice yields the
// same stored row, which is what makes the at-least-once flush safe.
func (s *Store) Upsert(ctx context.Context, userID primitive.ObjectID, lat, lng float64) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{
			"latitude":   lat,
			"longitude":  lng,
			"updated_at": time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// UpsertLocation adapts Upsert to the realtime core's string-keyed
// LocationStore interface. The session layer hands the core hex object
// ids, so a failed parse is a caller bug surfaced as an error.
func (s *Store) UpsertLocation(ctx context.Context, userID string, lat, lng float64) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("invalid user id %q: %w", userID, err)
	}
	return s.Upsert(ctx, oid, lat, lng)
}

// GetByUser returns the stored location for one user, or
// mongo.ErrNoDocuments when the user has never shared a position.
func (s *Store) GetByUser(ctx context.Context, userID primitive.ObjectID) (models.Location, error) {
	var loc models.Location
	err := s.c.FindOne(ctx, bson.M{"user_id": userID}).Decode(&loc)
	return loc, err
}

// ListExcluding returns stored locations for every user not in the
// exclude set, most recent first. The query side passes the currently
// connected users here so their fresher in-memory entries win.
func (s *Store) ListExcluding(ctx context.Context, exclude []primitive.ObjectID) ([]models.Location, error) {
	filter := bson.M{}
	if len(exclude) > 0 {
		filter["user_id"] = bson.M{"$nin": exclude}
	}

	cursor, err := s.c.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []models.Location
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
