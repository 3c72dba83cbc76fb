// Package internal contains core application functionality
package internal

import (
	"fmt"

	"github.com/karloscodes/cartridge"

	"goalytics/internal/config"
	"goalytics/internal/database"
	"goalytics/internal/jobs"
)

// Application wraps cartridge.Application with goalytics-specific components
type Application struct {
	*cartridge.Application
	DBManager *database.DBManager
	Scheduler *jobs.Scheduler
}

// NewApp creates a new application instance with default settings
func NewApp() (*Application, error) {
	cfg := config.GetConfig()
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig creates a new application with the provided config
func NewAppWithConfig(cfg *config.Config) (*Application, error) {
	return newApp(cfg, MountAppRoutes)
}

// newServerConfig returns the cartridge server configuration. Trackers POST
// cross-origin, so the Sec-Fetch-Site allowlist must accept cross-site and
// same-site on top of the default same-origin.
func newServerConfig() *cartridge.ServerConfig {
	serverCfg := cartridge.DefaultServerConfig()
	serverCfg.SecFetchSiteAllowedValues = []string{"cross-site", "same-site", "same-origin"}
	return serverCfg
}

func newApp(cfg *config.Config, routeMount func(*cartridge.Server)) (*Application, error) {
	logger := cartridge.NewLogger(cfg, nil)

	dbManager := database.NewDBManager(cfg, logger)
	if err := dbManager.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	scheduler, err := jobs.NewScheduler(dbManager, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jobs: %w", err)
	}

	app, err := cartridge.NewApplication(cartridge.ApplicationOptions{
		Config:            cfg,
		Logger:            logger,
		DBManager:         dbManager,
		ServerConfig:      newServerConfig(),
		RouteMountFunc:    routeMount,
		BackgroundWorkers: []cartridge.BackgroundWorker{scheduler},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}

	return &Application{
		Application: app,
		DBManager:   dbManager,
		Scheduler:   scheduler,
	}, nil
}
