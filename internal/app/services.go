package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/guttosm/resilience-layer/config"
	"github.com/guttosm/resilience-layer/internal/balancer"
	"github.com/guttosm/resilience-layer/internal/cache"
	"github.com/guttosm/resilience-layer/internal/jobqueue"
	"github.com/guttosm/resilience-layer/internal/logger"
	"github.com/guttosm/resilience-layer/internal/monitoring"
	"github.com/guttosm/resilience-layer/internal/repository"
	"github.com/guttosm/resilience-layer/internal/service"
)

// ServiceComponents holds the resilience primitives and the services built on them.
type ServiceComponents struct {
	Sink   *monitoring.Sink
	Cache  *cache.Tiered
	Router *balancer.Router
	Queues *jobqueue.Manager
	Lookup service.LookupService

	store cache.Store
}

// InitializeServices builds the sink, cache, router, job queues and lookup
// service. db may be nil.
func InitializeServices(ctx context.Context, cfg config.Config, db *DatabaseComponents) (*ServiceComponents, error) {
	sink, err := monitoring.NewSink(monitoring.Config{
		Retention:           cfg.Metrics.Retention,
		MaxSamplesPerMetric: cfg.Metrics.MaxSamples,
		MaxAlerts:           cfg.Metrics.MaxAlerts,
		PruneInterval:       cfg.Metrics.PruneInterval,
		Thresholds:          cfg.Metrics.AlertThresholds,
	})
	if err != nil {
		return nil, err
	}
	sc := &ServiceComponents{Sink: sink}

	sc.store = initializeL2Store(ctx, cfg, db)
	tiered, err := cache.NewTiered(sc.store, cache.Config{
		Name:            "lookup",
		L1Capacity:      cfg.Cache.L1Capacity,
		DefaultTTL:      cfg.Cache.DefaultTTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
		L2Timeout:       cfg.Cache.L2Timeout,
	}, cache.WithRecorder(sink), cache.WithBreaker(newBreaker("cache-l2", cfg.CircuitBreaker)))
	if err != nil {
		_ = sc.Close(ctx)
		return nil, err
	}
	sc.Cache = tiered

	targets := make([]balancer.TargetConfig, 0, len(cfg.Router.Targets))
	for _, t := range cfg.Router.Targets {
		targets = append(targets, balancer.TargetConfig{ID: t.ID, Address: t.Address})
	}
	probeClient := &http.Client{Timeout: cfg.Router.ProbeTimeout}
	router, err := balancer.New(targets, balancer.Config{
		WindowSize:         cfg.Router.WindowSize,
		DegradedErrorRate:  cfg.Router.DegradedErrorRate,
		UnhealthyErrorRate: cfg.Router.UnhealthyErrorRate,
		DegradedLatencyMs:  cfg.Router.DegradedLatencyMs,
		UnhealthyLatencyMs: cfg.Router.UnhealthyLatencyMs,
		ProbeInterval:      cfg.Router.ProbeInterval,
		ProbeTimeout:       cfg.Router.ProbeTimeout,
	}, balancer.WithRecorder(sink), balancer.WithProber(balancer.NewHTTPProber(probeClient, cfg.Router.HealthPath)))
	if err != nil {
		_ = sc.Close(ctx)
		return nil, err
	}
	sc.Router = router

	queueOpts := []jobqueue.Option{jobqueue.WithRecorder(sink)}
	var alertArchive repository.AlertsRepositoryInterface
	if db != nil {
		queueOpts = append(queueOpts, jobqueue.WithArchiver(service.NewJobArchiver(db.JobHistory)))
		alertArchive = db.Alerts
	}
	manager, err := jobqueue.NewManager(jobqueue.Config{
		Policies:       queuePolicies(cfg.Queue),
		SoftCap:        cfg.Queue.SoftCap,
		Retention:      cfg.Queue.Retention,
		ArchiveTimeout: 5 * time.Second,
	}, queueOpts...)
	if err != nil {
		_ = sc.Close(ctx)
		return nil, err
	}
	sc.Queues = manager

	if err := manager.CreateQueue(service.AlertsQueue, service.NewAlertArchiveHandler(alertArchive)); err != nil {
		_ = sc.Close(ctx)
		return nil, err
	}
	sink.OnAlert(service.NewAlertDispatcher(manager).Handle)

	sc.Lookup = service.NewLookupService(tiered, router,
		service.NewHTTPFetcher(&http.Client{Timeout: cfg.Router.CallTimeout}),
		service.WithCallTimeout(cfg.Router.CallTimeout),
		service.WithLookupRecorder(sink),
	)

	return sc, nil
}

// Close stops every background loop. Queued jobs get until ctx is done to finish.
func (sc *ServiceComponents) Close(ctx context.Context) error {
	var errs []error
	if sc.Router != nil {
		sc.Router.Stop()
	}
	if sc.Queues != nil {
		if err := sc.Queues.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.Cache != nil {
		sc.Cache.Stop()
	}
	if sc.store != nil {
		if err := sc.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if sc.Sink != nil {
		sc.Sink.Stop()
	}
	return errors.Join(errs...)
}

// initializeL2Store returns the configured L2 store, or nil (L1-only) when
// the backend is disabled or unreachable.
func initializeL2Store(ctx context.Context, cfg config.Config, db *DatabaseComponents) cache.Store {
	log := logger.Component("cache")

	switch cfg.Cache.L2Backend {
	case "redis":
		client, err := cache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			log.Error().Err(err).Msg("Invalid Redis configuration - running L1-only")
			return nil
		}
		store := cache.NewRedisStore(client, cfg.Cache.Namespace)
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			// The breaker keeps the cache usable until Redis comes back.
			log.Warn().Err(err).Msg("Redis not reachable at startup")
		}
		log.Info().Str("backend", "redis").Msg("L2 cache configured")
		return store
	case "mongo":
		if db == nil {
			log.Warn().Msg("MongoDB unavailable - running L1-only")
			return nil
		}
		log.Info().Str("backend", "mongo").Msg("L2 cache configured")
		return db.CacheEntries
	default:
		log.Info().Msg("No L2 backend - running L1-only")
		return nil
	}
}

// queuePolicies converts configured class policies to job queue policies.
func queuePolicies(cfg config.QueueConfig) map[jobqueue.Priority]jobqueue.ClassPolicy {
	policies := jobqueue.DefaultPolicies()
	for name, p := range cfg.Classes {
		policies[jobqueue.Priority(name)] = jobqueue.ClassPolicy{
			Concurrency: p.Concurrency,
			MaxAttempts: p.MaxAttempts,
			Backoff: jobqueue.BackoffPolicy{
				Initial:    p.Backoff.Initial,
				Max:        p.Backoff.Max,
				Multiplier: p.Backoff.Multiplier,
			},
		}
	}
	return policies
}
