package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/guttosm/resilience-layer/internal/jobqueue"
	"github.com/guttosm/resilience-layer/internal/logger"
	"github.com/guttosm/resilience-layer/internal/monitoring"
	"github.com/guttosm/resilience-layer/internal/repository"
)

// AlertsQueue is the job queue that carries sink alerts.
const AlertsQueue = "alerts"

// JobEnqueuer is the subset of the job queue manager used to push background work.
type JobEnqueuer interface {
	AddJob(queueName string, payload any, priority jobqueue.Priority, delay time.Duration) (string, error)
}

// AlertDispatcher turns sink alerts into jobs on the alerts queue so that
// archiving happens off the recording path.
type AlertDispatcher struct {
	queue JobEnqueuer
}

// NewAlertDispatcher creates an alert dispatcher.
func NewAlertDispatcher(queue JobEnqueuer) *AlertDispatcher {
	return &AlertDispatcher{queue: queue}
}

// Handle implements monitoring.AlertHandler. Alerts raised by the alerts
// queue's own samples stay in the sink only: enqueueing them would record
// another sample on the same queue and feed back into the sink.
func (d *AlertDispatcher) Handle(alert monitoring.Alert) {
	if alert.Tags["queue"] == AlertsQueue {
		return
	}
	priority := PriorityForSeverity(alert.Severity)
	if _, err := d.queue.AddJob(AlertsQueue, alert, priority, 0); err != nil {
		log := logger.Component("alerts")
		event := log.Warn()
		if errors.Is(err, jobqueue.ErrQueueStopped) {
			event = log.Debug()
		}
		event.Err(err).
			Str("metric", alert.Metric).
			Str("severity", string(alert.Severity)).
			Msg("Alert not queued")
	}
}

// PriorityForSeverity maps an alert severity to a job priority class.
func PriorityForSeverity(s monitoring.Severity) jobqueue.Priority {
	switch s {
	case monitoring.SeverityCritical:
		return jobqueue.PriorityCritical
	case monitoring.SeverityHigh:
		return jobqueue.PriorityHigh
	case monitoring.SeverityMedium:
		return jobqueue.PriorityNormal
	default:
		return jobqueue.PriorityLow
	}
}

// NewAlertArchiveHandler returns the alerts queue handler. Each alert is
// logged and, when repo is set, stored.
func NewAlertArchiveHandler(repo repository.AlertsRepositoryInterface) jobqueue.Handler {
	return func(ctx context.Context, job jobqueue.Job) error {
		alert, ok := job.Payload.(monitoring.Alert)
		if !ok {
			return fmt.Errorf("alert job %s: unexpected payload %T", job.ID, job.Payload)
		}

		zerolog.Ctx(ctx).Info().
			Str("metric", alert.Metric).
			Float64("value", alert.Value).
			Float64("threshold", alert.Threshold).
			Str("severity", string(alert.Severity)).
			Msg("Threshold alert")

		if repo == nil {
			return nil
		}
		return repo.Insert(ctx, &repository.AlertDocument{
			Metric:    alert.Metric,
			Value:     alert.Value,
			Threshold: alert.Threshold,
			Severity:  string(alert.Severity),
			Tags:      alert.Tags,
			Timestamp: alert.Timestamp,
		})
	}
}

// NewJobArchiver stores terminal jobs in the job history repository.
func NewJobArchiver(repo repository.JobHistoryRepositoryInterface) jobqueue.Archiver {
	return jobqueue.ArchiverFunc(func(ctx context.Context, job jobqueue.Job, status jobqueue.Status) error {
		return repo.Insert(ctx, jobToDocument(job, status))
	})
}

// jobToDocument converts a terminal job to its archived form.
func jobToDocument(job jobqueue.Job, status jobqueue.Status) *repository.JobDocument {
	return &repository.JobDocument{
		JobID:       job.ID,
		Queue:       job.Queue,
		Priority:    string(job.Priority),
		Status:      string(status),
		Attempts:    job.Attempt,
		MaxAttempts: job.MaxAttempts,
		Payload:     job.Payload,
		LastError:   job.LastError,
		CreatedAt:   job.EnqueuedAt,
		FinishedAt:  job.FinishedAt,
		DurationMs:  job.FinishedAt.Sub(job.EnqueuedAt).Milliseconds(),
	}
}
