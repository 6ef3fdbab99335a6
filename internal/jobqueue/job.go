// Package jobqueue runs background jobs in named queues with per-priority
// concurrency ceilings, bounded retries and soft-cap backpressure.
package jobqueue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQueueExists is returned by CreateQueue for a name already in use.
	ErrQueueExists = errors.New("queue already exists")
	// ErrUnknownQueue is returned for operations on a queue that was never created.
	ErrUnknownQueue = errors.New("unknown queue")
	// ErrInvalidPriority is returned by AddJob for a priority outside the fixed classes.
	ErrInvalidPriority = errors.New("invalid priority class")
	// ErrQueueFull is returned by AddJob when the queue's pending set is at its soft cap.
	ErrQueueFull = errors.New("queue is full")
	// ErrQueueStopped is returned once the manager has been stopped.
	ErrQueueStopped = errors.New("job queue manager is stopped")
)

// Priority is a job's priority class.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityNormal   Priority = "normal"
	PriorityLow      Priority = "low"
)

// Priorities lists the classes from highest to lowest.
var Priorities = []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

// rank returns the class's dispatch order, or -1 for an unknown class.
func (p Priority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	default:
		return -1
	}
}

// Valid reports whether p is one of the fixed classes.
func (p Priority) Valid() bool {
	return p.rank() >= 0
}

// Job is one unit of background work.
type Job struct {
	ID          string    `json:"id"`
	Queue       string    `json:"queue"`
	Payload     any       `json:"payload,omitempty"`
	Priority    Priority  `json:"priority"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	ScheduledAt time.Time `json:"scheduled_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`

	seq uint64
}

// Handler processes a job. A returned error or a panic counts as a failed attempt.
type Handler func(ctx context.Context, job Job) error

// Status is the terminal outcome passed to an Archiver.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Archiver receives every job once it reaches a terminal state.
type Archiver interface {
	Archive(ctx context.Context, job Job, status Status) error
}

// ArchiverFunc adapts a function to Archiver.
type ArchiverFunc func(ctx context.Context, job Job, status Status) error

// Archive calls f.
func (f ArchiverFunc) Archive(ctx context.Context, job Job, status Status) error {
	return f(ctx, job, status)
}

// Stats holds a queue's job counts. Completed, Failed and Retried are totals
// since the queue was created; the retained rings are bounded separately.
type Stats struct {
	Name      string `json:"name"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Retried   int    `json:"retried"`
}
