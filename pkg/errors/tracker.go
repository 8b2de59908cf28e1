package errors

import (
	"context"
)

// Tracker reports errors to an external tracking backend. The logger
// calls it from ErrorWithContext; pipelines add breadcrumbs as stages
// progress so a captured error carries its history.
type Tracker interface {
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush blocks until buffered events are delivered or ctx expires.
	Flush(ctx context.Context) error
}

// Level is the severity attached to captured events.
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string {
	return string(l)
}
