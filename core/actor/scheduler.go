package actor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Scheduler runs tasks outside the actor loop.
type Scheduler interface {
	// Schedule runs t in the background. If the scheduler's context is done
	// before t starts, or Wait was already called, t is aborted instead.
	Schedule(t Task)
	// Wait blocks until all scheduled tasks have run or been aborted. Tasks
	// scheduled after Wait was called are aborted.
	Wait()
}

type scheduler struct {
	ctx      context.Context
	log      *slog.Logger
	inflight atomic.Int32
	sem      chan struct{}

	// mu orders wg.Add against Wait.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	actorID string
	metrics ActorMetrics
}

func (s *scheduler) Schedule(t Task) {
	s.mu.Lock()
	if s.closed || s.ctx.Err() != nil {
		s.mu.Unlock()
		t.Abort()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()

		// unlimited if there is no semaphore
		if s.sem != nil {
			select {
			case <-s.ctx.Done():
				t.Abort()
				return
			case s.sem <- struct{}{}:
			}
			defer func() { <-s.sem }()
		}

		if s.ctx.Err() != nil {
			t.Abort()
			return
		}

		count := s.inflight.Add(1)
		s.metrics.SchedulerInflight(s.actorID, int(count))
		defer func() {
			count := s.inflight.Add(-1)
			s.metrics.SchedulerInflight(s.actorID, int(count))
		}()

		s.runTask(t)
	}()
}

func (s *scheduler) runTask(t Task) {
	defer s.metrics.SchedulerTaskDuration().ObserveDuration()

	defer func() {
		if r := recover(); r != nil {
			t.Abort()
			s.metrics.SchedulerTaskCompleted(false)
			s.log.Error("scheduled task panicked", slog.Any("recovered", r))
		}
	}()

	t.Run(s.ctx)
	s.metrics.SchedulerTaskCompleted(true)
}

func (s *scheduler) Wait() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}

// NewScheduler creates a scheduler that runs at most max tasks at a time. If
// max <= 0, concurrency is unlimited. Cancelling ctx aborts tasks that have
// not started yet; running tasks see ctx cancelled.
func NewScheduler(ctx context.Context, max int) Scheduler {
	return NewSchedulerWithMetrics(ctx, max, "", NopActorMetrics(), nil)
}

// NewSchedulerWithMetrics is [NewScheduler] with instrumentation and logging.
func NewSchedulerWithMetrics(ctx context.Context, max int, actorID string, m ActorMetrics, log *slog.Logger) Scheduler {
	var sem chan struct{}
	if max > 0 {
		sem = make(chan struct{}, max)
	}
	if m == nil {
		m = NopActorMetrics()
	}
	if log == nil {
		log = slog.Default()
	}
	return &scheduler{
		ctx:     ctx,
		sem:     sem,
		log:     log,
		actorID: actorID,
		metrics: m,
	}
}
