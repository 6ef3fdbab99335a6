package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/guttosm/resilience-layer/internal/apperrors"
	"github.com/guttosm/resilience-layer/internal/logger"
	"github.com/guttosm/resilience-layer/internal/metrics"
)

// queue is one named queue. Its mutex guards only heap, map and ring
// operations; handlers run outside it.
type queue struct {
	m           *Manager
	name        string
	handler     Handler
	concurrency int
	softCap     int
	retention   int

	mu          sync.Mutex
	pending     [4]jobHeap
	active      map[string]*Job
	classActive [4]int
	completed   []Job
	failed      []Job
	seq         uint64
	totals      struct{ completed, failed, retried int }

	wake     chan struct{}
	stopCh   chan struct{}
	loopDone chan struct{}
	stopOnce sync.Once
	handlers sync.WaitGroup
	log      zerolog.Logger
}

func newQueue(m *Manager, name string, handler Handler) *queue {
	return &queue{
		m:           m,
		name:        name,
		handler:     handler,
		concurrency: m.maxClassConcurrency(),
		softCap:     m.cfg.SoftCap,
		retention:   m.cfg.Retention,
		active:      make(map[string]*Job),
		wake:        make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		loopDone:    make(chan struct{}),
		log:         logger.Component("jobqueue").With().Str("queue", name).Logger(),
	}
}

func (q *queue) start() {
	go q.dispatchLoop()
}

func (q *queue) stopDispatch() {
	q.stopOnce.Do(func() {
		close(q.stopCh)
	})
	<-q.loopDone
}

// signal wakes the dispatch loop without blocking.
func (q *queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) tags(p Priority) map[string]string {
	return map[string]string{"queue": q.name, "priority": string(p)}
}

func (q *queue) enqueue(job *Job) error {
	q.mu.Lock()
	if q.pendingLocked() >= q.softCap {
		q.mu.Unlock()
		q.m.recorder.Record("queue.rejected", 1, q.tags(job.Priority))
		metrics.RecordJobEvent(q.name, string(job.Priority), "rejected")
		q.log.Warn().
			Str("priority", string(job.Priority)).
			Int("soft_cap", q.softCap).
			Msg("Job rejected, queue at soft cap")
		return fmt.Errorf("%w: %s has %d pending jobs", ErrQueueFull, q.name, q.softCap)
	}
	q.pushLocked(job)
	pending, active := q.pendingLocked(), len(q.active)
	q.mu.Unlock()

	q.m.recorder.Record("queue.enqueued", 1, q.tags(job.Priority))
	metrics.RecordJobEvent(q.name, string(job.Priority), "enqueued")
	metrics.UpdateQueueDepth(q.name, pending, active)
	q.signal()
	return nil
}

func (q *queue) pushLocked(job *Job) {
	q.seq++
	job.seq = q.seq
	q.pending[job.Priority.rank()].push(job)
}

func (q *queue) pendingLocked() int {
	n := 0
	for i := range q.pending {
		n += q.pending[i].Len()
	}
	return n
}

func (q *queue) dispatchLoop() {
	defer close(q.loopDone)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		wait, hasTimer := q.dispatchReady()

		var timerC <-chan time.Time
		if hasTimer {
			timer.Reset(wait)
			timerC = timer.C
		}

		select {
		case <-q.stopCh:
			return
		case <-q.wake:
		case <-timerC:
		}
		timer.Stop()
	}
}

// dispatchReady starts every job that may run now. It returns how long to
// sleep until the earliest scheduled job that could run, if any.
func (q *queue) dispatchReady() (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		select {
		case <-q.stopCh:
			return 0, false
		default:
		}

		if len(q.active) >= q.concurrency {
			// A finishing handler signals the loop.
			return 0, false
		}

		now := q.m.now()
		var (
			next    *Job
			wait    time.Duration
			waiting bool
		)
		for rank := range q.pending {
			if q.classActive[rank] >= q.m.policies[rank].Concurrency {
				continue
			}
			top := q.pending[rank].peek()
			if top == nil {
				continue
			}
			if !top.ScheduledAt.After(now) {
				next = q.pending[rank].pop()
				break
			}
			if d := top.ScheduledAt.Sub(now); !waiting || d < wait {
				wait, waiting = d, true
			}
		}
		if next == nil {
			return wait, waiting
		}

		next.Attempt++
		q.active[next.ID] = next
		q.classActive[next.Priority.rank()]++
		metrics.UpdateQueueDepth(q.name, q.pendingLocked(), len(q.active))

		q.handlers.Add(1)
		go q.execute(*next)
	}
}

func (q *queue) execute(job Job) {
	defer q.handlers.Done()

	jobLog := q.log.With().
		Str("job_id", job.ID).
		Str("priority", string(job.Priority)).
		Int("attempt", job.Attempt).
		Logger()
	ctx := jobLog.WithContext(context.Background())

	start := time.Now()
	err := q.invoke(ctx, job)
	elapsed := time.Since(start)

	q.m.recorder.Record("queue.job_duration_ms", float64(elapsed.Milliseconds()), q.tags(job.Priority))
	q.finish(job, err, &jobLog)
	q.signal()
}

// invoke runs the handler, turning a panic into an error.
func (q *queue) invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return q.handler(ctx, job)
}

func (q *queue) finish(job Job, err error, log *zerolog.Logger) {
	tags := q.tags(job.Priority)
	now := q.m.now()

	q.mu.Lock()
	delete(q.active, job.ID)
	q.classActive[job.Priority.rank()]--

	var (
		terminal bool
		status   Status
		event    string
		delay    time.Duration
	)
	switch {
	case err == nil:
		terminal, status, event = true, StatusCompleted, "completed"
		job.FinishedAt = now
		job.LastError = ""
		q.completed = appendBounded(q.completed, job, q.retention)
		q.totals.completed++
	case job.Attempt < job.MaxAttempts:
		event = "retried"
		delay = q.m.policies[job.Priority.rank()].Backoff.Delay(job.Attempt)
		job.LastError = err.Error()
		retry := job
		retry.ScheduledAt = now.Add(delay)
		q.pushLocked(&retry)
		q.totals.retried++
	default:
		terminal, status, event = true, StatusFailed, "failed"
		job.FinishedAt = now
		job.LastError = err.Error()
		q.failed = appendBounded(q.failed, job, q.retention)
		q.totals.failed++
	}
	metrics.UpdateQueueDepth(q.name, q.pendingLocked(), len(q.active))
	q.mu.Unlock()

	q.m.recorder.Record("queue."+event, 1, tags)
	metrics.RecordJobEvent(q.name, string(job.Priority), event)

	if err != nil {
		handlerErr := &apperrors.JobHandlerError{JobID: job.ID, Attempt: job.Attempt, Err: err}
		if terminal {
			log.Error().Err(handlerErr).Int("max_attempts", job.MaxAttempts).Msg("Job failed permanently")
		} else {
			log.Warn().Err(handlerErr).Dur("retry_in", delay).Msg("Job failed, retrying")
		}
	}

	if terminal {
		q.archive(job, status)
	}
}

func (q *queue) archive(job Job, status Status) {
	if q.m.archiver == nil {
		return
	}
	ctx := context.Background()
	if q.m.cfg.ArchiveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.m.cfg.ArchiveTimeout)
		defer cancel()
	}
	if err := q.m.archiver.Archive(ctx, job, status); err != nil {
		q.log.Warn().Err(err).Str("job_id", job.ID).Msg("Failed to archive job")
	}
}

func (q *queue) stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Name:      q.name,
		Pending:   q.pendingLocked(),
		Active:    len(q.active),
		Completed: q.totals.completed,
		Failed:    q.totals.failed,
		Retried:   q.totals.retried,
	}
}

func (q *queue) retained(status Status) []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	src := q.completed
	if status == StatusFailed {
		src = q.failed
	}
	out := make([]Job, len(src))
	copy(out, src)
	return out
}

// appendBounded appends job and drops the oldest entries beyond limit.
func appendBounded(ring []Job, job Job, limit int) []Job {
	if limit == 0 {
		return ring[:0]
	}
	ring = append(ring, job)
	if over := len(ring) - limit; over > 0 {
		ring = append(ring[:0], ring[over:]...)
	}
	return ring
}
