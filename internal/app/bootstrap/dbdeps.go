// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/crewhub/internal/app/realtime"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
// Extend this struct as your app evolves.
type DBDeps struct {
	CrewHubMongoClient   *mongo.Client
	CrewHubMongoDatabase *mongo.Database

	// Runtime carries long-lived state from BuildHandler to Shutdown.
	// The hooks receive DBDeps by value, so this is a pointer created
	// once in ConnectDB.
	Runtime *RuntimeDeps
}

// RuntimeDeps holds handles created during BuildHandler that Shutdown
// must tear down.
type RuntimeDeps struct {
	Realtime *realtime.Service
}
