package news

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"

	"hermes/internal/pipeline"
	"hermes/internal/workers"
	"hermes/pkg/errors"
)

// Locker is an optional distributed lock so only one instance runs a
// pipeline stage at a time. *redis.Client satisfies it.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// CollectorWorker runs the collect pipeline for every configured ticker.
type CollectorWorker struct {
	*workers.BaseWorker
	collect *pipeline.Collect
	tickers []string
	locker  Locker

	// Lookback window for the first run; subsequent runs fetch since the
	// previous successful iteration.
	lookback time.Duration
	lastRun  time.Time
}

// NewCollectorWorker creates a new article collector worker
func NewCollectorWorker(
	collect *pipeline.Collect,
	tickers []string,
	interval time.Duration,
	locker Locker,
	enabled bool,
) *CollectorWorker {
	return &CollectorWorker{
		BaseWorker: workers.NewBaseWorker("news_collector", interval, enabled),
		collect:    collect,
		tickers:    tickers,
		locker:     locker,
		lookback:   24 * time.Hour,
	}
}

// Run executes one collection iteration across all tickers
func (w *CollectorWorker) Run(ctx context.Context) error {
	release, err := acquire(ctx, w.locker, "collect", w.Interval())
	if err != nil {
		return err
	}
	if release == nil {
		w.Log().Debug("Collect lock held elsewhere, skipping iteration")
		return nil
	}
	defer release()

	since := w.lastRun
	if since.IsZero() {
		since = time.Now().Add(-w.lookback)
	}
	w.Log().Debugf("Collecting articles published since %s", humanize.Time(since))

	start := time.Now()
	var firstErr error
	totalSaved := 0

	for _, ticker := range w.tickers {
		res, err := w.collect.Run(ctx, ticker, since)
		totalSaved += res.Saved
		if err != nil {
			w.Log().Errorf("Collection failed for %s: %v", ticker, err)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "collect %s", ticker)
			}
			continue
		}
	}

	if firstErr == nil {
		w.lastRun = start
	}

	w.Log().Infof("Collection iteration finished: %d tickers, %d saved in %s",
		len(w.tickers), totalSaved, time.Since(start))
	return firstErr
}

// acquire takes the stage lock when a locker is configured. It returns a
// nil release func when the lock is held by another instance.
func acquire(ctx context.Context, locker Locker, stage string, ttl time.Duration) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}

	ok, err := locker.AcquireLock(ctx, "worker:"+stage, ttl)
	if err != nil {
		return nil, errors.Wrap(err, "acquire stage lock")
	}
	if !ok {
		return nil, nil
	}
	return func() {
		_ = locker.ReleaseLock(context.Background(), "worker:"+stage)
	}, nil
}
