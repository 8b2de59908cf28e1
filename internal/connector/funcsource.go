package connector

import (
	"context"
	"time"
)

// FetchFunc matches Source.FetchRaw for function-backed sources.
type FetchFunc func(ctx context.Context, ticker string, since time.Time) ([]RawItem, error)

// FuncSource adapts a plain function to the Source interface. Used for
// tests and for sources whose transport lives elsewhere.
type FuncSource struct {
	SourceName string
	SourceType string
	Fn         FetchFunc
}

var _ Source = (*FuncSource)(nil)

func (s *FuncSource) Name() string {
	if s.SourceName == "" {
		return "func"
	}
	return s.SourceName
}

func (s *FuncSource) Type() string {
	if s.SourceType == "" {
		return "news"
	}
	return s.SourceType
}

func (s *FuncSource) FetchRaw(ctx context.Context, ticker string, since time.Time) ([]RawItem, error) {
	return s.Fn(ctx, ticker, since)
}
