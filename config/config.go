// Package config provides configuration management for the resilience layer.
//
// Values are resolved in three steps: built-in defaults, an optional YAML file
// named by CONFIG_FILE, then environment variables. Everything is static after
// Load; there is no hot reload.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Log            LogConfig            `yaml:"log"`
	Cache          CacheConfig          `yaml:"cache"`
	Redis          RedisConfig          `yaml:"redis"`
	Database       DatabaseConfig       `yaml:"database"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Router         RouterConfig         `yaml:"router"`
	Queue          QueueConfig          `yaml:"queue"`
	Metrics        MetricsConfig        `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// CacheConfig holds tiered cache configuration. L2Backend is one of
// "none", "redis" or "mongo".
type CacheConfig struct {
	L1Capacity      int           `yaml:"l1_capacity"`
	DefaultTTL      time.Duration `yaml:"default_ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	L2Backend       string        `yaml:"l2_backend"`
	Namespace       string        `yaml:"namespace"`
	L2Timeout       time.Duration `yaml:"l2_timeout"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// DatabaseConfig holds MongoDB configuration.
type DatabaseConfig struct {
	URI          string        `yaml:"uri"`
	DatabaseName string        `yaml:"database"`
	Enabled      bool          `yaml:"enabled"`
	HistoryTTL   time.Duration `yaml:"history_ttl"`
}

// CircuitBreakerConfig guards calls to the L2 cache store.
type CircuitBreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// TargetConfig describes one backend target.
type TargetConfig struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
}

// RouterConfig holds health-aware router configuration.
type RouterConfig struct {
	Targets            []TargetConfig `yaml:"targets"`
	ProbeInterval      time.Duration  `yaml:"probe_interval"`
	ProbeTimeout       time.Duration  `yaml:"probe_timeout"`
	HealthPath         string         `yaml:"health_path"`
	WindowSize         int            `yaml:"window_size"`
	DegradedErrorRate  float64        `yaml:"degraded_error_rate"`
	UnhealthyErrorRate float64        `yaml:"unhealthy_error_rate"`
	DegradedLatencyMs  int64          `yaml:"degraded_latency_ms"`
	UnhealthyLatencyMs int64          `yaml:"unhealthy_latency_ms"`
	CallTimeout        time.Duration  `yaml:"call_timeout"`
}

// BackoffConfig describes a retry backoff curve.
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
}

// ClassPolicyConfig binds a priority class to its dispatch policy.
type ClassPolicyConfig struct {
	Concurrency int           `yaml:"concurrency"`
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     BackoffConfig `yaml:"backoff"`
}

// QueueConfig holds priority job queue configuration.
type QueueConfig struct {
	SoftCap   int                          `yaml:"soft_cap"`
	Retention int                          `yaml:"retention"`
	Classes   map[string]ClassPolicyConfig `yaml:"classes"`
}

// MetricsConfig holds metrics sink configuration.
type MetricsConfig struct {
	Retention       time.Duration      `yaml:"retention"`
	MaxSamples      int                `yaml:"max_samples"`
	MaxAlerts       int                `yaml:"max_alerts"`
	PruneInterval   time.Duration      `yaml:"prune_interval"`
	AlertThresholds map[string]float64 `yaml:"alert_thresholds"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			CORSOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{Level: "info"},
		Cache: CacheConfig{
			L1Capacity:      1000,
			DefaultTTL:      5 * time.Minute,
			CleanupInterval: time.Minute,
			L2Backend:       "none",
			Namespace:       "rl:",
			L2Timeout:       500 * time.Millisecond,
		},
		Redis: RedisConfig{URL: "localhost:6379"},
		Database: DatabaseConfig{
			URI:          "mongodb://localhost:27017",
			DatabaseName: "resilience_layer",
			HistoryTTL:   7 * 24 * time.Hour,
		},
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		},
		Router: RouterConfig{
			ProbeInterval:      30 * time.Second,
			ProbeTimeout:       5 * time.Second,
			HealthPath:         "/health",
			WindowSize:         100,
			DegradedErrorRate:  0.05,
			UnhealthyErrorRate: 0.10,
			DegradedLatencyMs:  2000,
			UnhealthyLatencyMs: 5000,
			CallTimeout:        10 * time.Second,
		},
		Queue: QueueConfig{
			SoftCap:   10000,
			Retention: 100,
			Classes: map[string]ClassPolicyConfig{
				"critical": {Concurrency: 10, MaxAttempts: 5, Backoff: BackoffConfig{Initial: time.Second, Max: 30 * time.Second, Multiplier: 2}},
				"high":     {Concurrency: 5, MaxAttempts: 3, Backoff: BackoffConfig{Initial: 2 * time.Second, Max: time.Minute, Multiplier: 2}},
				"normal":   {Concurrency: 3, MaxAttempts: 3, Backoff: BackoffConfig{Initial: 5 * time.Second, Max: 2 * time.Minute, Multiplier: 2}},
				"low":      {Concurrency: 1, MaxAttempts: 2, Backoff: BackoffConfig{Initial: 10 * time.Second, Max: 5 * time.Minute, Multiplier: 2}},
			},
		},
		Metrics: MetricsConfig{
			Retention:     time.Hour,
			MaxSamples:    1000,
			MaxAlerts:     1000,
			PruneInterval: time.Minute,
			AlertThresholds: map[string]float64{
				"http.response_time_ms":   1000,
				"router.response_time_ms": 2000,
				"router.error_rate":       0.05,
				"queue.job_duration_ms":   30000,
			},
		},
	}
}

// Load builds a Config from defaults, the optional CONFIG_FILE and the environment.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = append(cfg.Server.CORSOrigins, parseList(v)...)
	}
	cfg.Server.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.Server.RequestTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Pretty = getEnvBool("LOG_PRETTY", cfg.Log.Pretty)

	cfg.Cache.L1Capacity = getEnvInt("CACHE_L1_CAPACITY", cfg.Cache.L1Capacity)
	cfg.Cache.DefaultTTL = getEnvDuration("CACHE_DEFAULT_TTL", cfg.Cache.DefaultTTL)
	cfg.Cache.CleanupInterval = getEnvDuration("CACHE_CLEANUP_INTERVAL", cfg.Cache.CleanupInterval)
	cfg.Cache.L2Backend = strings.ToLower(getEnv("CACHE_L2_BACKEND", cfg.Cache.L2Backend))
	cfg.Cache.Namespace = getEnv("CACHE_NAMESPACE", cfg.Cache.Namespace)
	cfg.Cache.L2Timeout = getEnvDuration("CACHE_L2_TIMEOUT", cfg.Cache.L2Timeout)

	cfg.Redis.URL = getEnv("REDIS_URL", cfg.Redis.URL)

	cfg.Database.URI = getEnv("MONGODB_URI", cfg.Database.URI)
	cfg.Database.DatabaseName = getEnv("MONGODB_DATABASE", cfg.Database.DatabaseName)
	cfg.Database.Enabled = getEnvBool("MONGODB_ENABLED", cfg.Database.Enabled)
	cfg.Database.HistoryTTL = getEnvDuration("MONGODB_HISTORY_TTL", cfg.Database.HistoryTTL)

	cfg.CircuitBreaker.FailureThreshold = getEnvInt("CIRCUIT_BREAKER_FAILURE_THRESHOLD", cfg.CircuitBreaker.FailureThreshold)
	cfg.CircuitBreaker.SuccessThreshold = getEnvInt("CIRCUIT_BREAKER_SUCCESS_THRESHOLD", cfg.CircuitBreaker.SuccessThreshold)
	cfg.CircuitBreaker.Timeout = getEnvDuration("CIRCUIT_BREAKER_TIMEOUT", cfg.CircuitBreaker.Timeout)

	if v := os.Getenv("ROUTER_TARGETS"); v != "" {
		cfg.Router.Targets = parseTargets(v)
	}
	cfg.Router.ProbeInterval = getEnvDuration("ROUTER_PROBE_INTERVAL", cfg.Router.ProbeInterval)
	cfg.Router.ProbeTimeout = getEnvDuration("ROUTER_PROBE_TIMEOUT", cfg.Router.ProbeTimeout)
	cfg.Router.HealthPath = getEnv("ROUTER_HEALTH_PATH", cfg.Router.HealthPath)
	cfg.Router.WindowSize = getEnvInt("ROUTER_WINDOW_SIZE", cfg.Router.WindowSize)
	cfg.Router.DegradedErrorRate = getEnvFloat("ROUTER_DEGRADED_ERROR_RATE", cfg.Router.DegradedErrorRate)
	cfg.Router.UnhealthyErrorRate = getEnvFloat("ROUTER_UNHEALTHY_ERROR_RATE", cfg.Router.UnhealthyErrorRate)
	cfg.Router.DegradedLatencyMs = int64(getEnvInt("ROUTER_DEGRADED_LATENCY_MS", int(cfg.Router.DegradedLatencyMs)))
	cfg.Router.UnhealthyLatencyMs = int64(getEnvInt("ROUTER_UNHEALTHY_LATENCY_MS", int(cfg.Router.UnhealthyLatencyMs)))
	cfg.Router.CallTimeout = getEnvDuration("ROUTER_CALL_TIMEOUT", cfg.Router.CallTimeout)

	cfg.Queue.SoftCap = getEnvInt("QUEUE_SOFT_CAP", cfg.Queue.SoftCap)
	cfg.Queue.Retention = getEnvInt("QUEUE_RETENTION", cfg.Queue.Retention)

	cfg.Metrics.Retention = getEnvDuration("METRICS_RETENTION", cfg.Metrics.Retention)
	cfg.Metrics.MaxSamples = getEnvInt("METRICS_MAX_SAMPLES", cfg.Metrics.MaxSamples)
	cfg.Metrics.MaxAlerts = getEnvInt("METRICS_MAX_ALERTS", cfg.Metrics.MaxAlerts)
	cfg.Metrics.PruneInterval = getEnvDuration("METRICS_PRUNE_INTERVAL", cfg.Metrics.PruneInterval)
	if v := os.Getenv("ALERT_THRESHOLDS"); v != "" {
		if cfg.Metrics.AlertThresholds == nil {
			cfg.Metrics.AlertThresholds = make(map[string]float64)
		}
		for name, value := range parseThresholds(v) {
			cfg.Metrics.AlertThresholds[name] = value
		}
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// parseTargets parses "id=address,id=address". Entries without '=' use the
// address as id.
func parseTargets(s string) []TargetConfig {
	items := parseList(s)
	result := make([]TargetConfig, 0, len(items))
	for _, item := range items {
		id, addr, ok := strings.Cut(item, "=")
		if !ok {
			result = append(result, TargetConfig{ID: item, Address: item})
			continue
		}
		result = append(result, TargetConfig{ID: strings.TrimSpace(id), Address: strings.TrimSpace(addr)})
	}
	return result
}

func parseThresholds(s string) map[string]float64 {
	result := make(map[string]float64)
	for _, item := range parseList(s) {
		name, raw, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			result[strings.TrimSpace(name)] = v
		}
	}
	return result
}
