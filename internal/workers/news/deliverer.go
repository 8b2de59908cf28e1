package news

import (
	"context"
	"time"

	"hermes/internal/pipeline"
	"hermes/internal/workers"
)

// DelivererWorker drains undelivered insights on a short interval.
type DelivererWorker struct {
	*workers.BaseWorker
	deliver *pipeline.Deliver
	locker  Locker
}

// NewDelivererWorker creates a new insight deliverer worker
func NewDelivererWorker(
	deliver *pipeline.Deliver,
	interval time.Duration,
	locker Locker,
	enabled bool,
) *DelivererWorker {
	return &DelivererWorker{
		BaseWorker: workers.NewBaseWorker("news_deliverer", interval, enabled),
		deliver:    deliver,
		locker:     locker,
	}
}

// Run executes one delivery iteration
func (w *DelivererWorker) Run(ctx context.Context) error {
	release, err := acquire(ctx, w.locker, "deliver", w.Interval())
	if err != nil {
		return err
	}
	if release == nil {
		w.Log().Debug("Deliver lock held elsewhere, skipping iteration")
		return nil
	}
	defer release()

	start := time.Now()
	delivered, err := w.deliver.Run(ctx)
	if err != nil {
		return err
	}

	if delivered > 0 {
		w.Log().Infof("Delivered %d insights in %s", delivered, time.Since(start))
	}
	return nil
}
