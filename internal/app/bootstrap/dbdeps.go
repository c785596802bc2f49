// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/devcanvas/devcanvas/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and backend dependencies for this WAFFLE app.
//
// It is created in ConnectDB and passed to EnsureSchema, Startup,
// BuildHandler, and Shutdown. Shutdown closes what it holds.
type DBDeps struct {
	// MongoDB client and database
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Metrics is the process-wide Prometheus registry. ConnectDB creates it
	// so background jobs and handlers report into the same one.
	Metrics *metrics.Metrics
}
