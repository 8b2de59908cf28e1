package news

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hermes/internal/pipeline"
	"hermes/internal/workers"
	"hermes/pkg/errors"
)

// AnalyzerWorker runs the analyze pipeline for every configured ticker.
type AnalyzerWorker struct {
	*workers.BaseWorker
	analyze *pipeline.Analyze
	tickers []string
	locker  Locker
}

// NewAnalyzerWorker creates a new insight analyzer worker
func NewAnalyzerWorker(
	analyze *pipeline.Analyze,
	tickers []string,
	interval time.Duration,
	locker Locker,
	enabled bool,
) *AnalyzerWorker {
	return &AnalyzerWorker{
		BaseWorker: workers.NewBaseWorker("news_analyzer", interval, enabled),
		analyze:    analyze,
		tickers:    tickers,
		locker:     locker,
	}
}

// Run executes one analysis iteration across all tickers
func (w *AnalyzerWorker) Run(ctx context.Context) error {
	release, err := acquire(ctx, w.locker, "analyze", w.Interval())
	if err != nil {
		return err
	}
	if release == nil {
		w.Log().Debug("Analyze lock held elsewhere, skipping iteration")
		return nil
	}
	defer release()

	start := time.Now()
	var firstErr error
	analyzed := 0

	for _, ticker := range w.tickers {
		id, err := w.analyze.Run(ctx, ticker)
		if err != nil {
			w.Log().Errorf("Analysis failed for %s: %v", ticker, err)
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "analyze %s", ticker)
			}
			continue
		}
		if id != uuid.Nil {
			analyzed++
		}
	}

	w.Log().Infof("Analysis iteration finished: %d tickers, %d insights in %s",
		len(w.tickers), analyzed, time.Since(start))
	return firstErr
}
