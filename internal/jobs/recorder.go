package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hermes/internal/adapters/kafka"
	"hermes/internal/domain/jobrun"
	"hermes/pkg/logger"
)

// finishWriteTimeout bounds the detached terminal write.
const finishWriteTimeout = 10 * time.Second

// EventPublisher is the outbound event stream for failed runs.
// *kafka.Producer satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// PipelineFailedEvent is published when a run finishes failed.
type PipelineFailedEvent struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Ticker     string    `json:"ticker,omitempty"`
	Source     string    `json:"source,omitempty"`
	TaskName   string    `json:"task_name"`
	TraceID    string    `json:"trace_id"`
	Error      string    `json:"error"`
	FinishedAt time.Time `json:"finished_at"`
}

// Recorder opens durable job run scopes around pipeline work. The initial
// running row is committed before any risky work starts, so a crash
// mid-task still leaves a trace. The terminal write happens on scope exit
// regardless of outcome and never masks the original error.
type Recorder struct {
	repo   jobrun.Repository
	events EventPublisher
	log    *logger.Logger
}

// NewRecorder creates a recorder on the given repository.
func NewRecorder(repo jobrun.Repository) *Recorder {
	return NewRecorderWithEvents(repo, nil)
}

// NewRecorderWithEvents additionally publishes a PipelineFailedEvent for
// every failed run. events may be nil.
func NewRecorderWithEvents(repo jobrun.Repository, events EventPublisher) *Recorder {
	return &Recorder{
		repo:   repo,
		events: events,
		log:    logger.Get().With("component", "jobrun_recorder"),
	}
}

// StartParams identifies the unit of work being recorded.
type StartParams struct {
	Stage    jobrun.Stage
	Ticker   string
	Source   string
	TaskName string
	TraceID  string
}

// Scope is one open job run. Close it with Finish, typically:
//
//	scope, err := rec.Start(ctx, params)
//	if err != nil { ... }
//	defer func() { scope.Finish(ctx, retErr) }()
type Scope struct {
	rec *Recorder
	run *jobrun.JobRun
}

// Start persists the running row and returns the open scope.
func (r *Recorder) Start(ctx context.Context, p StartParams) (*Scope, error) {
	run := &jobrun.JobRun{
		ID:        uuid.New(),
		Stage:     p.Stage,
		Status:    jobrun.StatusRunning,
		Ticker:    p.Ticker,
		Source:    p.Source,
		TaskName:  p.TaskName,
		TraceID:   p.TraceID,
		StartedAt: time.Now().UTC(),
	}
	if run.TraceID == "" {
		run.TraceID = uuid.NewString()
	}

	if err := r.repo.Create(ctx, run); err != nil {
		return nil, err
	}
	return &Scope{rec: r, run: run}, nil
}

// Run returns the mutable job run handle owned by this scope.
func (s *Scope) Run() *jobrun.JobRun {
	return s.run
}

// Finish writes the terminal state: succeeded when taskErr is nil, failed
// with the truncated error message otherwise. A failure of the terminal
// write itself is logged and swallowed so the caller's error survives.
//
// The write runs on a context detached from ctx's cancellation. The work
// often fails precisely because ctx was cancelled, and the terminal row
// must still land on shutdown.
func (s *Scope) Finish(ctx context.Context, taskErr error) {
	now := time.Now().UTC()
	s.run.FinishedAt = &now

	if taskErr == nil {
		s.run.Status = jobrun.StatusSucceeded
	} else {
		s.run.Status = jobrun.StatusFailed
		s.run.ErrorMessage = truncate(taskErr.Error(), jobrun.MaxErrorLen)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishWriteTimeout)
	defer cancel()

	if err := s.rec.repo.Finish(writeCtx, s.run); err != nil {
		s.rec.log.Errorf("Failed to finalize job run %s: %v", s.run.ID, err)
	}

	if taskErr != nil && s.rec.events != nil {
		event := PipelineFailedEvent{
			RunID:      s.run.ID.String(),
			Stage:      string(s.run.Stage),
			Ticker:     s.run.Ticker,
			Source:     s.run.Source,
			TaskName:   s.run.TaskName,
			TraceID:    s.run.TraceID,
			Error:      s.run.ErrorMessage,
			FinishedAt: now,
		}
		if err := s.rec.events.Publish(writeCtx, kafka.TopicPipelineFailed, string(s.run.Stage), event); err != nil {
			s.rec.log.Warnf("Failed to publish failure event for run %s: %v", s.run.ID, err)
		}
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
