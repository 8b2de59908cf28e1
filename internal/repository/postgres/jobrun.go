package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"hermes/internal/domain/jobrun"
)

// Compile-time check
var _ jobrun.Repository = (*JobRunRepository)(nil)

// JobRunRepository implements jobrun.Repository using sqlx
type JobRunRepository struct {
	db *sqlx.DB
}

// NewJobRunRepository creates a new job run repository
func NewJobRunRepository(db *sqlx.DB) *JobRunRepository {
	return &JobRunRepository{db: db}
}

// Create writes the initial running row. The insert commits immediately so
// the record survives even if the task crashes before finishing.
func (r *JobRunRepository) Create(ctx context.Context, run *jobrun.JobRun) error {
	query := `
		INSERT INTO job_runs (
			id, stage, status, ticker, source, task_name, trace_id,
			started_at, retry_count, error_code, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.Stage, run.Status, run.Ticker, run.Source, run.TaskName,
		run.TraceID, run.StartedAt, run.RetryCount, run.ErrorCode, run.ErrorMessage,
	)
	return err
}

// Finish writes the terminal status and error fields for an existing row.
func (r *JobRunRepository) Finish(ctx context.Context, run *jobrun.JobRun) error {
	query := `
		UPDATE job_runs
		SET status = $1, finished_at = $2, retry_count = $3,
		    error_code = $4, error_message = $5
		WHERE id = $6`

	_, err := r.db.ExecContext(ctx, query,
		run.Status, run.FinishedAt, run.RetryCount,
		run.ErrorCode, run.ErrorMessage, run.ID,
	)
	return err
}
