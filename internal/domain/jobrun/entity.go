package jobrun

import (
	"time"

	"github.com/google/uuid"
)

// Stage identifies which pipeline stage a run belongs to.
type Stage string

const (
	StageCollect Stage = "collect"
	StageAnalyze Stage = "analyze"
	StageDeliver Stage = "deliver"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRetry     Status = "retry"
)

// MaxErrorLen bounds the persisted error message.
const MaxErrorLen = 512

// JobRun is the durable record of one pipeline execution attempt. It is
// written with its own commits, independent of whatever transaction the
// pipeline itself uses, so a trace survives a crash mid-task.
type JobRun struct {
	ID           uuid.UUID  `db:"id"`
	Stage        Stage      `db:"stage"`
	Status       Status     `db:"status"`
	Ticker       string     `db:"ticker"`
	Source       string     `db:"source"`
	TaskName     string     `db:"task_name"`
	TraceID      string     `db:"trace_id"`
	StartedAt    time.Time  `db:"started_at"`
	FinishedAt   *time.Time `db:"finished_at"`
	RetryCount   int        `db:"retry_count"`
	ErrorCode    string     `db:"error_code"`
	ErrorMessage string     `db:"error_message"`
}
