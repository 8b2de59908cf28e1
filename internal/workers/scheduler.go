package workers

import (
	"context"
	"sync"
	"time"

	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// errorStreakWarn is the consecutive-failure count that triggers a
// loud log. The worker keeps running; a pipeline stage may recover on
// its own when an upstream comes back.
const errorStreakWarn = 5

// healthRecorder is satisfied by every worker embedding BaseWorker.
type healthRecorder interface {
	RecordRun(duration time.Duration)
	RecordError(err error, duration time.Duration)
	Health() WorkerHealth
}

// Scheduler runs each registered worker on its own interval loop.
type Scheduler struct {
	workers []Worker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	log     *logger.Logger
	started bool
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{
		log: logger.Get().With("component", "scheduler"),
	}
}

// RegisterWorker adds a worker. Registration after Start is ignored.
func (s *Scheduler) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnf("Ignoring registration of %s: scheduler already started", w.Name())
		return
	}

	s.workers = append(s.workers, w)
	s.log.Infof("Registered worker %s (interval %s)", w.Name(), w.Interval())
}

// Start launches one goroutine per enabled worker.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrInternal, "scheduler already started")
	}

	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for _, worker := range s.workers {
		if !worker.Enabled() {
			s.log.Infof("Worker %s disabled, skipping", worker.Name())
			continue
		}

		s.wg.Add(1)
		go s.runWorker(worker)
	}

	s.log.Infof("Scheduler started with %d workers", len(s.workers))
	return nil
}

// Stop cancels all worker loops and waits for in-flight iterations to
// drain. An analyze iteration may be blocked on a provider call, so the
// wait is bounded rather than immediate.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrapf(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	s.log.Info("Stopping scheduler...")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
		s.log.Info("All workers stopped")
	case <-time.After(2 * time.Minute):
		shutdownErr = errors.Wrapf(errors.ErrInternal, "shutdown timeout after 2 minutes")
		s.log.Warn("Worker shutdown timed out")
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	return shutdownErr
}

func (s *Scheduler) runWorker(worker Worker) {
	defer s.wg.Done()

	ticker := time.NewTicker(worker.Interval())
	defer ticker.Stop()

	// First iteration fires immediately, not one interval in.
	s.executeWorker(worker)

	for {
		select {
		case <-s.ctx.Done():
			s.log.Infof("Worker %s stopping", worker.Name())
			return

		case <-ticker.C:
			s.executeWorker(worker)
		}
	}
}

func (s *Scheduler) executeWorker(worker Worker) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Worker %s panicked: %v", worker.Name(), r)
		}
	}()

	err := worker.Run(s.ctx)
	duration := time.Since(start)
	metrics.RecordWorkerExecution(worker.Name(), duration, err)

	recorder, tracked := worker.(healthRecorder)

	if err != nil {
		if tracked {
			recorder.RecordError(err, duration)
			if streak := recorder.Health().ConsecutiveErrors; streak >= errorStreakWarn {
				s.log.Warnf("Worker %s has failed %d times in a row", worker.Name(), streak)
			}
		}
		s.log.Errorf("Worker %s failed after %s: %v", worker.Name(), duration, err)
		return
	}

	if tracked {
		recorder.RecordRun(duration)
	}
	s.log.Debugf("Worker %s finished in %s", worker.Name(), duration)
}

// GetWorkers returns a copy of the registered worker list.
func (s *Scheduler) GetWorkers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workers := make([]Worker, len(s.workers))
	copy(workers, s.workers)
	return workers
}

// IsRunning reports whether Start has been called without a matching Stop.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
