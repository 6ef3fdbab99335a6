package app

import (
	"context"
	"time"

	"github.com/guttosm/resilience-layer/config"
	"github.com/guttosm/resilience-layer/internal/circuitbreaker"
	"github.com/guttosm/resilience-layer/internal/logger"
	"github.com/guttosm/resilience-layer/internal/repository"
)

// DatabaseComponents holds the MongoDB-backed repositories.
type DatabaseComponents struct {
	DB                       *repository.MongoDB
	CacheEntries             *repository.CacheEntriesRepository
	JobHistory               repository.JobHistoryRepositoryInterface
	Alerts                   repository.AlertsRepositoryInterface
	JobHistoryCircuitBreaker *circuitbreaker.CircuitBreaker
	AlertsCircuitBreaker     *circuitbreaker.CircuitBreaker
}

// InitializeDatabase connects to MongoDB and builds the archive repositories.
// It returns nil when the database is disabled or unreachable; the service
// then runs without archives.
func InitializeDatabase(cfg config.DatabaseConfig, cbCfg config.CircuitBreakerConfig) *DatabaseComponents {
	if !cfg.Enabled {
		return nil
	}

	log := logger.Component("database")

	db, err := repository.NewMongoDB(cfg.URI, cfg.DatabaseName)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to MongoDB - continuing without database")
		return nil
	}
	log.Info().Str("database", cfg.DatabaseName).Msg("Connected to MongoDB")

	if cfg.HistoryTTL > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.SetHistoryTTL(ctx, cfg.HistoryTTL); err != nil {
			log.Warn().Err(err).Dur("ttl", cfg.HistoryTTL).Msg("Failed to set history TTL index")
		}
		cancel()
	}

	historyCB := newBreaker("mongodb-job-history", cbCfg)
	alertsCB := newBreaker("mongodb-alerts", cbCfg)

	return &DatabaseComponents{
		DB:                       db,
		CacheEntries:             repository.NewCacheEntriesRepository(db),
		JobHistory:               repository.NewJobHistoryRepositoryWithCircuitBreaker(repository.NewJobHistoryRepository(db), historyCB),
		Alerts:                   repository.NewAlertsRepositoryWithCircuitBreaker(repository.NewAlertsRepository(db), alertsCB),
		JobHistoryCircuitBreaker: historyCB,
		AlertsCircuitBreaker:     alertsCB,
	}
}

// Close disconnects from MongoDB.
func (d *DatabaseComponents) Close(ctx context.Context) error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close(ctx)
}

// newBreaker creates a circuit breaker whose transitions are logged.
func newBreaker(name string, cfg config.CircuitBreakerConfig) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		SuccessThreshold: cfg.SuccessThreshold,
		Timeout:          cfg.Timeout,
		Name:             name,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			log := logger.Component("circuitbreaker")
			event := log.Info()
			if to == circuitbreaker.StateOpen {
				event = log.Warn()
			}
			event.Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}
