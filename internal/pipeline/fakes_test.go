package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hermes/internal/domain/article"
	"hermes/internal/domain/insight"
	"hermes/internal/domain/jobrun"
	"hermes/internal/domain/usage"
)

type fakeArticles struct {
	existing map[string]struct{}
	saved    []article.RawArticleRecord
	recent   []article.RawArticleRecord

	listErr error
	saveErr error
}

func (f *fakeArticles) GetExistingFingerprints(_ context.Context, fps []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, fp := range fps {
		if _, ok := f.existing[fp]; ok {
			out[fp] = struct{}{}
		}
	}
	return out, nil
}

func (f *fakeArticles) SaveArticles(_ context.Context, records []article.RawArticleRecord) (int, error) {
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.saved = append(f.saved, records...)
	return len(records), nil
}

func (f *fakeArticles) ListCollectedSince(_ context.Context, ticker string, since time.Time) ([]article.RawArticleRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []article.RawArticleRecord
	for _, rec := range f.recent {
		if !rec.CollectedAt.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeJobRuns struct {
	created  []*jobrun.JobRun
	finished []*jobrun.JobRun
}

func (f *fakeJobRuns) Create(_ context.Context, run *jobrun.JobRun) error {
	cp := *run
	f.created = append(f.created, &cp)
	return nil
}

func (f *fakeJobRuns) Finish(_ context.Context, run *jobrun.JobRun) error {
	cp := *run
	f.finished = append(f.finished, &cp)
	return nil
}

func (f *fakeJobRuns) lastFinished() *jobrun.JobRun {
	if len(f.finished) == 0 {
		return nil
	}
	return f.finished[len(f.finished)-1]
}

type savedInsight struct {
	result *insight.AnalysisResult
	refs   []insight.SourceRef
}

type fakeInsights struct {
	saved     []savedInsight
	pending   []insight.StoredInsight
	delivered []uuid.UUID

	saveErr error
	markErr error
}

func (f *fakeInsights) SaveInsight(_ context.Context, result *insight.AnalysisResult, refs []insight.SourceRef) (uuid.UUID, error) {
	if f.saveErr != nil {
		return uuid.Nil, f.saveErr
	}
	f.saved = append(f.saved, savedInsight{result: result, refs: refs})
	return uuid.New(), nil
}

func (f *fakeInsights) ListUndelivered(_ context.Context, limit int) ([]insight.StoredInsight, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeInsights) MarkDelivered(_ context.Context, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.delivered = append(f.delivered, id)
	return nil
}

type fakeUsage struct {
	logs []*usage.Log
}

func (f *fakeUsage) Store(_ context.Context, log *usage.Log) error {
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeUsage) GetDailyCost(_ context.Context, ticker string, date time.Time) (float64, error) {
	total := 0.0
	for _, l := range f.logs {
		if l.Ticker == ticker {
			total += l.CostUSD
		}
	}
	return total, nil
}

type publishedEvent struct {
	topic string
	key   string
	event interface{}
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, topic, key string, event interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, publishedEvent{topic: topic, key: key, event: event})
	return nil
}

type fakeAlerts struct {
	sent []insight.StoredInsight
	err  error
}

func (f *fakeAlerts) SendUrgent(_ context.Context, item insight.StoredInsight) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, item)
	return nil
}
