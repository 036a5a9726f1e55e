package testutil

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/crewhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a whitelisted test user with the given name.
// Returns the created user with its generated ID.
func (f *Fixtures) CreateUser(ctx context.Context, name string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   name,
		FullNameCI: strings.ToLower(name),
		Email:      strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@test.com",
		AvatarURL:  "/avatars/default.png",
		Status:     "active",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := f.db.Collection("users").InsertOne(ctx, u); err != nil {
		f.t.Fatalf("insert test user: %v", err)
	}
	return u
}

// CreateLocation stores a last-known location row for the user.
func (f *Fixtures) CreateLocation(ctx context.Context, userID primitive.ObjectID, lat, lng float64) models.Location {
	f.t.Helper()

	loc := models.Location{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		Latitude:  lat,
		Longitude: lng,
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("locations").InsertOne(ctx, loc); err != nil {
		f.t.Fatalf("insert test location: %v", err)
	}
	return loc
}
