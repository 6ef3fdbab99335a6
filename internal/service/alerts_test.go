package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/guttosm/resilience-layer/internal/jobqueue"
	"github.com/guttosm/resilience-layer/internal/mocks"
	"github.com/guttosm/resilience-layer/internal/monitoring"
	"github.com/guttosm/resilience-layer/internal/repository"
)

func TestPriorityForSeverity(t *testing.T) {
	tests := []struct {
		severity monitoring.Severity
		want     jobqueue.Priority
	}{
		{monitoring.SeverityCritical, jobqueue.PriorityCritical},
		{monitoring.SeverityHigh, jobqueue.PriorityHigh},
		{monitoring.SeverityMedium, jobqueue.PriorityNormal},
		{monitoring.SeverityLow, jobqueue.PriorityLow},
		{"", jobqueue.PriorityLow},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityForSeverity(tt.severity))
		})
	}
}

func TestAlertDispatcher_Handle(t *testing.T) {
	alert := monitoring.Alert{Metric: "router.error_rate", Value: 0.3, Threshold: 0.1, Severity: monitoring.SeverityCritical}

	t.Run("enqueues on the alerts queue", func(t *testing.T) {
		q := &mocks.MockJobEnqueuer{}
		q.On("AddJob", AlertsQueue, alert, jobqueue.PriorityCritical, time.Duration(0)).Return("job-1", nil)

		NewAlertDispatcher(q).Handle(alert)

		q.AssertExpectations(t)
	})

	t.Run("ignores alerts about the alerts queue", func(t *testing.T) {
		q := &mocks.MockJobEnqueuer{}
		selfAlert := monitoring.Alert{
			Metric:    "queue.rejected",
			Value:     1,
			Threshold: 0.5,
			Severity:  monitoring.SeverityLow,
			Tags:      map[string]string{"queue": AlertsQueue, "priority": "low"},
		}

		NewAlertDispatcher(q).Handle(selfAlert)

		q.AssertNotCalled(t, "AddJob", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("swallows enqueue errors", func(t *testing.T) {
		for _, err := range []error{jobqueue.ErrQueueFull, jobqueue.ErrQueueStopped} {
			q := &mocks.MockJobEnqueuer{}
			q.On("AddJob", AlertsQueue, alert, jobqueue.PriorityCritical, time.Duration(0)).Return("", err)

			assert.NotPanics(t, func() { NewAlertDispatcher(q).Handle(alert) })
			q.AssertExpectations(t)
		}
	})
}

func TestAlertArchiveHandler(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	alert := monitoring.Alert{
		Metric:    "queue.wait_ms",
		Value:     900,
		Threshold: 500,
		Severity:  monitoring.SeverityHigh,
		Timestamp: ts,
		Tags:      map[string]string{"queue": "emails"},
	}

	t.Run("stores the alert", func(t *testing.T) {
		repo := &mocks.MockAlertsRepository{}
		repo.On("Insert", mock.Anything, mock.MatchedBy(func(doc *repository.AlertDocument) bool {
			return doc.Metric == "queue.wait_ms" &&
				doc.Value == 900 &&
				doc.Threshold == 500 &&
				doc.Severity == "high" &&
				doc.Timestamp.Equal(ts) &&
				doc.Tags["queue"] == "emails"
		})).Return(nil)

		err := NewAlertArchiveHandler(repo)(context.Background(), jobqueue.Job{ID: "j", Payload: alert})

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("repository failure is returned for retry", func(t *testing.T) {
		repo := &mocks.MockAlertsRepository{}
		repo.On("Insert", mock.Anything, mock.Anything).Return(errors.New("write failed"))

		err := NewAlertArchiveHandler(repo)(context.Background(), jobqueue.Job{ID: "j", Payload: alert})

		assert.EqualError(t, err, "write failed")
	})

	t.Run("unexpected payload", func(t *testing.T) {
		repo := &mocks.MockAlertsRepository{}

		err := NewAlertArchiveHandler(repo)(context.Background(), jobqueue.Job{ID: "j", Payload: "nope"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected payload string")
		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("nil repository only logs", func(t *testing.T) {
		err := NewAlertArchiveHandler(nil)(context.Background(), jobqueue.Job{ID: "j", Payload: alert})
		assert.NoError(t, err)
	})
}

func TestJobArchiver(t *testing.T) {
	enqueued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	job := jobqueue.Job{
		ID:          "job-9",
		Queue:       "emails",
		Payload:     map[string]string{"to": "ops"},
		Priority:    jobqueue.PriorityHigh,
		Attempt:     3,
		MaxAttempts: 3,
		EnqueuedAt:  enqueued,
		FinishedAt:  enqueued.Add(1500 * time.Millisecond),
		LastError:   "smtp down",
	}

	repo := &mocks.MockJobHistoryRepository{}
	repo.On("Insert", mock.Anything, mock.MatchedBy(func(doc *repository.JobDocument) bool {
		return doc.JobID == "job-9" &&
			doc.Queue == "emails" &&
			doc.Priority == "high" &&
			doc.Status == "failed" &&
			doc.Attempts == 3 &&
			doc.MaxAttempts == 3 &&
			doc.LastError == "smtp down" &&
			doc.DurationMs == 1500
	})).Return(nil)

	err := NewJobArchiver(repo).Archive(context.Background(), job, jobqueue.StatusFailed)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

// TestAlertPipeline runs a threshold breach through the sink, the alerts
// queue and the archive handler.
func TestAlertPipeline(t *testing.T) {
	stored := make(chan *repository.AlertDocument, 1)
	repo := &mocks.MockAlertsRepository{}
	repo.On("Insert", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			stored <- args.Get(1).(*repository.AlertDocument)
		}).
		Return(nil)

	manager, err := jobqueue.NewManager(jobqueue.DefaultConfig())
	require.NoError(t, err)
	defer func() {
		_ = manager.Stop(context.Background())
	}()
	require.NoError(t, manager.CreateQueue(AlertsQueue, NewAlertArchiveHandler(repo)))

	cfg := monitoring.DefaultConfig()
	cfg.PruneInterval = 0
	cfg.Thresholds = map[string]float64{"router.response_time_ms": 1000}
	sink, err := monitoring.NewSink(cfg)
	require.NoError(t, err)
	defer sink.Stop()
	sink.OnAlert(NewAlertDispatcher(manager).Handle)

	sink.Record("router.response_time_ms", 2500, map[string]string{"target": "api-1"})

	select {
	case doc := <-stored:
		assert.Equal(t, "router.response_time_ms", doc.Metric)
		assert.Equal(t, "critical", doc.Severity)
		assert.Equal(t, "api-1", doc.Tags["target"])
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not archived")
	}
}

// Thresholds on the queue's own counters must not turn one alert into an
// unbounded chain of alert jobs.
func TestAlertPipeline_QueueMetricThresholds(t *testing.T) {
	manager, err := jobqueue.NewManager(jobqueue.DefaultConfig())
	require.NoError(t, err)
	defer func() {
		_ = manager.Stop(context.Background())
	}()
	require.NoError(t, manager.CreateQueue(AlertsQueue, NewAlertArchiveHandler(nil), jobqueue.WithSoftCap(50)))
	require.NoError(t, manager.CreateQueue("emails", func(context.Context, jobqueue.Job) error { return nil }))

	cfg := monitoring.DefaultConfig()
	cfg.PruneInterval = 0
	cfg.Thresholds = map[string]float64{
		"queue.enqueued": 0.5,
		"queue.rejected": 0.5,
	}
	sink, err := monitoring.NewSink(cfg)
	require.NoError(t, err)
	defer sink.Stop()
	sink.OnAlert(NewAlertDispatcher(manager).Handle)

	tests := []struct {
		name   string
		metric string
		tags   map[string]string
		queued int
	}{
		{name: "enqueued on a work queue", metric: "queue.enqueued", tags: map[string]string{"queue": "emails"}, queued: 1},
		{name: "rejected on a work queue", metric: "queue.rejected", tags: map[string]string{"queue": "emails"}, queued: 1},
		{name: "enqueued on the alerts queue", metric: "queue.enqueued", tags: map[string]string{"queue": AlertsQueue}, queued: 0},
		{name: "rejected on the alerts queue", metric: "queue.rejected", tags: map[string]string{"queue": AlertsQueue}, queued: 0},
	}

	want := 0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() { sink.Record(tt.metric, 1, tt.tags) })
			want += tt.queued

			require.Eventually(t, func() bool {
				stats, err := manager.QueueStats(AlertsQueue)
				return err == nil && stats.Pending == 0 && stats.Active == 0 && stats.Completed == want
			}, 2*time.Second, 10*time.Millisecond)
		})
	}

	// Each queued alert raised one more alert on the alerts queue, which
	// stays in the sink log without being queued.
	selfAlerts := 0
	for _, a := range sink.Alerts(0) {
		if a.Tags["queue"] == AlertsQueue {
			selfAlerts++
		}
	}
	assert.Equal(t, 4, selfAlerts)

	stats, err := manager.QueueStats(AlertsQueue)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Completed)
}
