package news

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/connector"
	"hermes/internal/dedupe"
	"hermes/internal/domain/article"
	"hermes/internal/domain/insight"
	"hermes/internal/domain/jobrun"
	"hermes/internal/jobs"
	"hermes/internal/pipeline"
	"hermes/pkg/errors"
)

type fakeLocker struct {
	held       bool
	acquireErr error

	acquired []string
	released []string
}

func (f *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	f.acquired = append(f.acquired, key)
	return !f.held, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, key string) error {
	f.released = append(f.released, key)
	return nil
}

type fakeArticleRepo struct {
	saved []article.RawArticleRecord
}

func (f *fakeArticleRepo) GetExistingFingerprints(_ context.Context, _ []string) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func (f *fakeArticleRepo) SaveArticles(_ context.Context, records []article.RawArticleRecord) (int, error) {
	f.saved = append(f.saved, records...)
	return len(records), nil
}

func (f *fakeArticleRepo) ListCollectedSince(_ context.Context, _ string, _ time.Time) ([]article.RawArticleRecord, error) {
	return nil, nil
}

type fakeJobRunRepo struct{}

func (fakeJobRunRepo) Create(_ context.Context, _ *jobrun.JobRun) error { return nil }
func (fakeJobRunRepo) Finish(_ context.Context, _ *jobrun.JobRun) error { return nil }

type fakeInsightRepo struct {
	pending   []insight.StoredInsight
	delivered []uuid.UUID
}

func (f *fakeInsightRepo) SaveInsight(_ context.Context, _ *insight.AnalysisResult, _ []insight.SourceRef) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (f *fakeInsightRepo) ListUndelivered(_ context.Context, _ int) ([]insight.StoredInsight, error) {
	return f.pending, nil
}

func (f *fakeInsightRepo) MarkDelivered(_ context.Context, id uuid.UUID) error {
	f.delivered = append(f.delivered, id)
	return nil
}

// newCollectorForTest wires a collect pipeline around a function source so
// the worker can be exercised without any transport.
func newCollectorForTest(fn connector.FetchFunc, locker Locker) (*CollectorWorker, *fakeArticleRepo) {
	repo := &fakeArticleRepo{}
	collect := pipeline.NewCollect(pipeline.CollectConfig{
		Connectors: []*connector.Connector{
			connector.New(&connector.FuncSource{SourceName: "test", Fn: fn}),
		},
		Articles: repo,
		Keystore: dedupe.NewMemoryKeyStore(),
		Recorder: jobs.NewRecorder(fakeJobRunRepo{}),
	})
	return NewCollectorWorker(collect, []string{"AAPL"}, time.Minute, locker, true), repo
}

func TestCollectorWorker_SkipsWhenLockHeld(t *testing.T) {
	calls := 0
	fn := func(_ context.Context, _ string, _ time.Time) ([]connector.RawItem, error) {
		calls++
		return nil, nil
	}
	locker := &fakeLocker{held: true}
	worker, _ := newCollectorForTest(fn, locker)

	err := worker.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Empty(t, locker.released)
}

func TestCollectorWorker_LockErrorPropagates(t *testing.T) {
	fn := func(_ context.Context, _ string, _ time.Time) ([]connector.RawItem, error) {
		t.Fatal("source must not be called")
		return nil, nil
	}
	locker := &fakeLocker{acquireErr: errors.New("redis down")}
	worker, _ := newCollectorForTest(fn, locker)

	err := worker.Run(context.Background())
	require.Error(t, err)
}

func TestCollectorWorker_ReleasesLockAfterRun(t *testing.T) {
	fn := func(_ context.Context, _ string, _ time.Time) ([]connector.RawItem, error) {
		return []connector.RawItem{{"url": "https://a.example/1", "title": "one", "body": "text"}}, nil
	}
	locker := &fakeLocker{}
	worker, repo := newCollectorForTest(fn, locker)

	err := worker.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, repo.saved, 1)
	assert.Equal(t, []string{"worker:collect"}, locker.acquired)
	assert.Equal(t, []string{"worker:collect"}, locker.released)
}

func TestCollectorWorker_AdvancesWatermarkOnSuccess(t *testing.T) {
	var sinces []time.Time
	fn := func(_ context.Context, _ string, since time.Time) ([]connector.RawItem, error) {
		sinces = append(sinces, since)
		return nil, nil
	}
	worker, _ := newCollectorForTest(fn, nil)

	before := time.Now()
	require.NoError(t, worker.Run(context.Background()))
	require.NoError(t, worker.Run(context.Background()))

	require.Len(t, sinces, 2)
	// First run looks back a full day, the second only to the first run.
	assert.True(t, sinces[0].Before(before.Add(-23*time.Hour)))
	assert.False(t, sinces[1].Before(before.Add(-time.Minute)))
}

func TestCollectorWorker_KeepsWatermarkOnFailure(t *testing.T) {
	var sinces []time.Time
	failFirst := true
	fn := func(_ context.Context, _ string, since time.Time) ([]connector.RawItem, error) {
		sinces = append(sinces, since)
		if failFirst {
			failFirst = false
			return nil, connector.Permanent("test", errors.New("bad credentials"))
		}
		return nil, nil
	}
	worker, _ := newCollectorForTest(fn, nil)

	require.Error(t, worker.Run(context.Background()))
	require.NoError(t, worker.Run(context.Background()))

	require.Len(t, sinces, 2)
	// The failed iteration must not advance the window.
	assert.True(t, sinces[1].Before(time.Now().Add(-23*time.Hour)))
}

func TestDelivererWorker_DrainsPending(t *testing.T) {
	repo := &fakeInsightRepo{
		pending: []insight.StoredInsight{
			{ID: uuid.New(), Result: insight.AnalysisResult{Ticker: "AAPL", SummaryText: "s", GeneratedAt: time.Now()}},
		},
	}
	deliver := pipeline.NewDeliver(pipeline.DeliverConfig{
		Insights: repo,
		Recorder: jobs.NewRecorder(fakeJobRunRepo{}),
	})
	locker := &fakeLocker{}
	worker := NewDelivererWorker(deliver, time.Minute, locker, true)

	err := worker.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, repo.delivered, 1)
	assert.Equal(t, []string{"worker:deliver"}, locker.released)
}

func TestDelivererWorker_SkipsWhenLockHeld(t *testing.T) {
	repo := &fakeInsightRepo{pending: []insight.StoredInsight{{ID: uuid.New()}}}
	deliver := pipeline.NewDeliver(pipeline.DeliverConfig{
		Insights: repo,
		Recorder: jobs.NewRecorder(fakeJobRunRepo{}),
	})
	worker := NewDelivererWorker(deliver, time.Minute, &fakeLocker{held: true}, true)

	require.NoError(t, worker.Run(context.Background()))
	assert.Empty(t, repo.delivered)
}
