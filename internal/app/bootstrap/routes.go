// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	healthfeature "github.com/dalemusser/crewhub/internal/app/features/health"
	locationsfeature "github.com/dalemusser/crewhub/internal/app/features/locations"
	realtimefeature "github.com/dalemusser/crewhub/internal/app/features/realtime"
	"github.com/dalemusser/crewhub/internal/app/realtime"
	locationstore "github.com/dalemusser/crewhub/internal/app/store/locations"
	userstore "github.com/dalemusser/crewhub/internal/app/store/users"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and any Startup hooks have completed. CrewHub builds the stores,
// starts the realtime service and its background workers, and mounts
// the health, WebSocket, and location query routes. The CRUD surfaces
// of the application (feed, chat, teams, profiles) live in a separate
// service; business logic there reaches this one through the realtime
// service's NotifyUser/NotifyAll seam.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	locStore := locationstore.New(deps.CrewHubMongoDatabase)
	users := userstore.New(deps.CrewHubMongoDatabase)

	rtService := realtime.NewService(locStore, logger, realtime.Options{
		AwayThreshold:  appCfg.PresenceAwayThreshold,
		SweepInterval:  appCfg.PresenceSweepInterval,
		FlushInterval:  appCfg.LocationFlushInterval,
		DebounceWindow: appCfg.DebounceWindow,
		Epsilon:        appCfg.LocationEpsilon,
	})
	rtService.Start()
	// Stash the handle so Shutdown can stop the workers.
	deps.Runtime.Realtime = rtService

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.CrewHubMongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// WebSocket endpoint for presence, location, and change events
	wsHandler := realtimefeature.NewHandler(rtService, logger)
	wsHandler.ReadLimit = appCfg.WSReadLimit
	r.Mount("/ws", realtimefeature.Routes(wsHandler))

	// Query side of location sharing
	locationsHandler := locationsfeature.NewHandler(rtService, locStore, users, logger)
	r.Mount("/api/locations", locationsfeature.Routes(locationsHandler))

	return r, nil
}
