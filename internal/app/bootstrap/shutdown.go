// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown cleanly tears down the realtime workers and DB connections.
// The realtime service stops first so its final location flush still
// has a live Mongo connection.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Runtime != nil && deps.Runtime.Realtime != nil {
		deps.Runtime.Realtime.Stop()
	}

	if deps.CrewHubMongoClient != nil {
		logger.Info("disconnecting CrewHub MongoDB client")
		if err := deps.CrewHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
