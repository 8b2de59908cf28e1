package jobrun

import "context"

// Repository persists job run lifecycle records. Both writes commit on
// their own so the trace is durable regardless of the caller's outcome.
type Repository interface {
	// Create writes the initial running row.
	Create(ctx context.Context, run *JobRun) error

	// Finish writes the terminal status, finish timestamp and error fields.
	Finish(ctx context.Context, run *JobRun) error
}
