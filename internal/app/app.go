// Package app wires configuration, infrastructure and HTTP handlers into a
// runnable service.
package app

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/resilience-layer/config"
	"github.com/guttosm/resilience-layer/internal/http"
	"github.com/guttosm/resilience-layer/internal/logger"
)

// App owns every long-lived component.
type App struct {
	Engine   *gin.Engine
	Services *ServiceComponents
	Database *DatabaseComponents
}

// InitializeApp validates cfg and wires all application dependencies.
func InitializeApp(ctx context.Context, cfg config.Config) (*App, error) {
	InitializeLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db := InitializeDatabase(cfg.Database, cfg.CircuitBreaker)

	services, err := InitializeServices(ctx, cfg, db)
	if err != nil {
		_ = db.Close(ctx)
		return nil, err
	}

	rc := InitializeRouter(services, db, cfg)

	return &App{
		Engine:   http.NewRouter(rc.APIHandler, rc.MonitoringHandler, rc.HealthHandler, rc.Config),
		Services: services,
		Database: db,
	}, nil
}

// Start launches background work that needs a running process, currently
// the router's health probes.
func (a *App) Start(ctx context.Context) {
	a.Services.Router.Start(ctx)
	log := logger.Component("app")
	log.Info().
		Int("targets", len(a.Services.Router.Targets())).
		Strs("queues", a.Services.Queues.Queues()).
		Msg("Resilience layer started")
}

// Shutdown stops components in dependency order: probes and queues first so
// their last writes reach the cache and archives, then the stores.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.Services.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Database.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
