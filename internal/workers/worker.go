package workers

import (
	"context"
	"sync"
	"time"

	"hermes/pkg/logger"
)

// Worker is one scheduled background task. Run performs a single
// iteration; the scheduler calls it on every Interval tick.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
	Interval() time.Duration
	Enabled() bool
}

// WorkerHealth is a snapshot of a worker's run history.
type WorkerHealth struct {
	LastRun           time.Time
	LastError         error
	RunCount          int64
	ErrorCount        int64
	ConsecutiveErrors int64
	AvgDuration       time.Duration
	Enabled           bool
}

// BaseWorker carries the bookkeeping every worker shares: identity,
// interval, enable flag and run history. Embed it and implement Run.
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *logger.Logger

	mu                sync.RWMutex
	enabled           bool
	lastRun           time.Time
	lastError         error
	runCount          int64
	errorCount        int64
	consecutiveErrors int64
	totalDuration     time.Duration
}

func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		enabled:  enabled,
		log:      logger.Get().With("worker", name),
	}
}

func (w *BaseWorker) Name() string { return w.name }

func (w *BaseWorker) Interval() time.Duration { return w.interval }

func (w *BaseWorker) Enabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.enabled
}

// SetEnabled toggles the worker. Takes effect on the next scheduler tick.
func (w *BaseWorker) SetEnabled(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled = enabled
	w.log.Infof("Worker enabled=%v", enabled)
}

// Log returns the worker-scoped logger.
func (w *BaseWorker) Log() *logger.Logger {
	return w.log
}

// Health returns the current run history snapshot.
func (w *BaseWorker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var avg time.Duration
	if w.runCount > 0 {
		avg = w.totalDuration / time.Duration(w.runCount)
	}

	return WorkerHealth{
		LastRun:           w.lastRun,
		LastError:         w.lastError,
		RunCount:          w.runCount,
		ErrorCount:        w.errorCount,
		ConsecutiveErrors: w.consecutiveErrors,
		AvgDuration:       avg,
		Enabled:           w.enabled,
	}
}

// RecordRun logs a clean iteration and resets the error streak.
func (w *BaseWorker) RecordRun(duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastRun = time.Now()
	w.runCount++
	w.totalDuration += duration
	w.lastError = nil
	w.consecutiveErrors = 0
}

// RecordError logs a failed iteration.
func (w *BaseWorker) RecordError(err error, duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastRun = time.Now()
	w.runCount++
	w.errorCount++
	w.consecutiveErrors++
	w.totalDuration += duration
	w.lastError = err
}
