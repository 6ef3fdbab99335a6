package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guttosm/resilience-layer/internal/apperrors"
	"github.com/guttosm/resilience-layer/internal/logger"
	"github.com/guttosm/resilience-layer/internal/monitoring"
)

// Config holds manager-wide defaults.
type Config struct {
	// Policies maps every priority class to its policy.
	Policies map[Priority]ClassPolicy
	// SoftCap is the default pending-job limit per queue.
	SoftCap int
	// Retention is the default number of completed and failed jobs kept per queue.
	Retention int
	// ArchiveTimeout bounds each Archiver call.
	ArchiveTimeout time.Duration
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		Policies:       DefaultPolicies(),
		SoftCap:        10000,
		Retention:      100,
		ArchiveTimeout: 5 * time.Second,
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder sends queue samples to r.
func WithRecorder(r monitoring.Recorder) Option {
	return func(m *Manager) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithArchiver hands every terminal job to a.
func WithArchiver(a Archiver) Option {
	return func(m *Manager) {
		m.archiver = a
	}
}

// QueueOption overrides manager defaults for one queue.
type QueueOption func(*queue)

// WithConcurrency caps the number of jobs the queue runs at once.
func WithConcurrency(n int) QueueOption {
	return func(q *queue) {
		q.concurrency = n
	}
}

// WithSoftCap sets the queue's pending-job limit.
func WithSoftCap(n int) QueueOption {
	return func(q *queue) {
		q.softCap = n
	}
}

// WithRetention sets how many completed and failed jobs the queue keeps.
func WithRetention(n int) QueueOption {
	return func(q *queue) {
		q.retention = n
	}
}

// Manager owns a set of named queues.
type Manager struct {
	cfg      Config
	policies [4]ClassPolicy
	recorder monitoring.Recorder
	archiver Archiver
	now      func() time.Time
	newID    func() string

	mu      sync.RWMutex
	queues  map[string]*queue
	stopped bool
}

// NewManager creates a manager. Every priority class must have a valid policy.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.SoftCap <= 0 {
		return nil, apperrors.NewConfigurationError("queue.soft_cap", "must be positive")
	}
	if cfg.Retention < 0 {
		return nil, apperrors.NewConfigurationError("queue.retention", "must not be negative")
	}

	m := &Manager{
		cfg:      cfg,
		recorder: monitoring.Nop,
		now:      time.Now,
		newID:    uuid.NewString,
		queues:   make(map[string]*queue),
	}
	for _, class := range Priorities {
		policy, ok := cfg.Policies[class]
		if !ok {
			return nil, apperrors.NewConfigurationError("queue.classes", fmt.Sprintf("missing policy for %s", class))
		}
		if err := policy.validate(class); err != nil {
			return nil, err
		}
		m.policies[class.rank()] = policy
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CreateQueue registers a queue and starts its dispatch loop.
func (m *Manager) CreateQueue(name string, handler Handler, opts ...QueueOption) error {
	if name == "" {
		return apperrors.NewConfigurationError("queue.name", "must not be empty")
	}
	if handler == nil {
		return apperrors.NewConfigurationError("queue.handler", "must not be nil")
	}

	q := newQueue(m, name, handler)
	for _, opt := range opts {
		opt(q)
	}
	if q.concurrency <= 0 {
		return apperrors.NewConfigurationError("queue.concurrency", "must be positive")
	}
	if q.softCap <= 0 {
		return apperrors.NewConfigurationError("queue.soft_cap", "must be positive")
	}
	if q.retention < 0 {
		return apperrors.NewConfigurationError("queue.retention", "must not be negative")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrQueueStopped
	}
	if _, exists := m.queues[name]; exists {
		return fmt.Errorf("%w: %s", ErrQueueExists, name)
	}
	m.queues[name] = q
	q.start()

	log := logger.Component("jobqueue")
	log.Info().
		Str("queue", name).
		Int("concurrency", q.concurrency).
		Int("soft_cap", q.softCap).
		Msg("Queue created")
	return nil
}

// AddJob enqueues a job to run no earlier than delay from now and returns
// its ID. It never waits for the job to run.
func (m *Manager) AddJob(queueName string, payload any, priority Priority, delay time.Duration) (string, error) {
	if !priority.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	q, err := m.lookup(queueName)
	if err != nil {
		return "", err
	}
	if delay < 0 {
		delay = 0
	}

	now := m.now()
	job := &Job{
		ID:          m.newID(),
		Queue:       queueName,
		Payload:     payload,
		Priority:    priority,
		MaxAttempts: m.policies[priority.rank()].MaxAttempts,
		EnqueuedAt:  now,
		ScheduledAt: now.Add(delay),
	}
	if err := q.enqueue(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// QueueStats returns the queue's job counts.
func (m *Manager) QueueStats(name string) (Stats, error) {
	q, err := m.lookupAny(name)
	if err != nil {
		return Stats{}, err
	}
	return q.stats(), nil
}

// Completed returns a copy of the queue's retained completed jobs, oldest first.
func (m *Manager) Completed(name string) ([]Job, error) {
	q, err := m.lookupAny(name)
	if err != nil {
		return nil, err
	}
	return q.retained(StatusCompleted), nil
}

// Failed returns a copy of the queue's retained failed jobs, oldest first.
func (m *Manager) Failed(name string) ([]Job, error) {
	q, err := m.lookupAny(name)
	if err != nil {
		return nil, err
	}
	return q.retained(StatusFailed), nil
}

// Queues returns the registered queue names.
func (m *Manager) Queues() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	return names
}

// Stop ends every dispatch loop and waits for running handlers until ctx is
// done. Handlers are never cancelled; pending jobs are dropped.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	queues := make([]*queue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.Unlock()

	for _, q := range queues {
		q.stopDispatch()
	}

	done := make(chan struct{})
	go func() {
		for _, q := range queues {
			q.handlers.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		log := logger.Component("jobqueue")
		log.Warn().Err(ctx.Err()).Msg("Stopped waiting for running jobs")
		return ctx.Err()
	}
}

// lookup returns a queue that accepts new jobs.
func (m *Manager) lookup(name string) (*queue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		return nil, ErrQueueStopped
	}
	q, ok := m.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, name)
	}
	return q, nil
}

// lookupAny returns a queue even after Stop, for inspection.
func (m *Manager) lookupAny(name string) (*queue, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, name)
	}
	return q, nil
}

func (m *Manager) maxClassConcurrency() int {
	n := 0
	for _, p := range m.policies {
		if p.Concurrency > n {
			n = p.Concurrency
		}
	}
	return n
}
