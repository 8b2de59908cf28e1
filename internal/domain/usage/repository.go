package usage

import (
	"context"
	"time"
)

// Repository defines operations for LLM usage tracking.
type Repository interface {
	// Store saves a usage log entry (may be buffered).
	Store(ctx context.Context, log *Log) error

	// GetDailyCost returns total cost for a ticker on a specific day.
	GetDailyCost(ctx context.Context, ticker string, date time.Time) (float64, error)
}
