package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/domain/article"
	"hermes/internal/domain/jobrun"
	"hermes/internal/domain/usage"
	"hermes/internal/jobs"
	"hermes/internal/llm"
	"hermes/pkg/errors"
)

const analysisJSON = `{
	"summary_text": "Strong quarter driven by services revenue.",
	"keywords": ["apple", "services", "revenue"],
	"sentiment_score": 0.5,
	"anomalies": []
}`

func testGateway(provider llm.ProviderFunc) *llm.Gateway {
	return llm.NewGateway(llm.Config{
		Model:            "gpt-4o-mini",
		MaxTokens:        512,
		CostCapUSD:       0.02,
		RequestTimeout:   5 * time.Second,
		RetryMaxAttempts: 1,
	}, llm.WithProvider(provider))
}

func recentArticles(n int) []article.RawArticleRecord {
	recs := make([]article.RawArticleRecord, 0, n)
	for i := 0; i < n; i++ {
		recs = append(recs, article.RawArticleRecord{
			Ticker:      "AAPL",
			Title:       "headline",
			Body:        "article body",
			URL:         "https://x/a",
			CollectedAt: time.Now().UTC(),
		})
	}
	return recs
}

func TestAnalyze_SavesInsightWithRefs(t *testing.T) {
	jobRuns := &fakeJobRuns{}
	insights := &fakeInsights{}
	usageRepo := &fakeUsage{}

	p := NewAnalyze(AnalyzeConfig{
		Articles: &fakeArticles{recent: recentArticles(3)},
		Insights: insights,
		Usage:    usageRepo,
		Gateway: testGateway(func(ctx context.Context, pay llm.Payload) (*llm.ProviderResponse, error) {
			return &llm.ProviderResponse{
				Model:   pay.Model,
				Content: analysisJSON,
				Usage:   llm.Usage{PromptTokens: 800, CompletionTokens: 150},
			}, nil
		}),
		Recorder: jobs.NewRecorder(jobRuns),
		Locale:   "en_US",
		MaxChars: 2000,
	})

	id, err := p.Run(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	require.Len(t, insights.saved, 1)
	saved := insights.saved[0]
	assert.Equal(t, "AAPL", saved.result.Ticker)
	assert.Len(t, saved.refs, 3)
	assert.Equal(t, "https://x/a", saved.refs[0].URL)

	require.Len(t, usageRepo.logs, 1)
	assert.Equal(t, uint32(800), usageRepo.logs[0].PromptTokens)
	assert.Equal(t, uint32(950), usageRepo.logs[0].TotalTokens)
	assert.Greater(t, usageRepo.logs[0].CostUSD, 0.0)

	run := jobRuns.lastFinished()
	require.NotNil(t, run)
	assert.Equal(t, jobrun.StageAnalyze, run.Stage)
	assert.Equal(t, jobrun.StatusSucceeded, run.Status)
	assert.Equal(t, run.TraceID, usageRepo.logs[0].TraceID)
}

func TestAnalyze_NoArticlesIsNoop(t *testing.T) {
	jobRuns := &fakeJobRuns{}
	insights := &fakeInsights{}

	calls := 0
	p := NewAnalyze(AnalyzeConfig{
		Articles: &fakeArticles{},
		Insights: insights,
		Gateway: testGateway(func(ctx context.Context, pay llm.Payload) (*llm.ProviderResponse, error) {
			calls++
			return nil, nil
		}),
		Recorder: jobs.NewRecorder(jobRuns),
		MaxChars: 2000,
	})

	id, err := p.Run(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)
	assert.Equal(t, 0, calls)
	assert.Empty(t, insights.saved)
	assert.Equal(t, jobrun.StatusSucceeded, jobRuns.lastFinished().Status)
}

func TestAnalyze_GatewayErrorRecordedAndPropagated(t *testing.T) {
	jobRuns := &fakeJobRuns{}

	p := NewAnalyze(AnalyzeConfig{
		Articles: &fakeArticles{recent: recentArticles(1)},
		Insights: &fakeInsights{},
		Gateway: testGateway(func(ctx context.Context, pay llm.Payload) (*llm.ProviderResponse, error) {
			return nil, llm.Permanent(errors.ErrCostCapExceeded)
		}),
		Recorder: jobs.NewRecorder(jobRuns),
		MaxChars: 2000,
	})

	_, err := p.Run(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCostCapExceeded))

	run := jobRuns.lastFinished()
	require.NotNil(t, run)
	assert.Equal(t, jobrun.StatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "cost cap")
}

func TestAnalyze_RespectsArticleLimit(t *testing.T) {
	insights := &fakeInsights{}
	p := NewAnalyze(AnalyzeConfig{
		Articles: &fakeArticles{recent: recentArticles(20)},
		Insights: insights,
		Gateway: testGateway(func(ctx context.Context, pay llm.Payload) (*llm.ProviderResponse, error) {
			return &llm.ProviderResponse{Model: pay.Model, Content: analysisJSON, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 10}}, nil
		}),
		Recorder:     jobs.NewRecorder(&fakeJobRuns{}),
		MaxChars:     2000,
		ArticleLimit: 5,
	})

	_, err := p.Run(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, insights.saved, 1)
	assert.Len(t, insights.saved[0].refs, 5)
}

func TestAnalyze_ExcludesStaleArticles(t *testing.T) {
	fresh := article.RawArticleRecord{
		Ticker:      "AAPL",
		Title:       "fresh headline",
		URL:         "https://x/fresh",
		CollectedAt: time.Now().UTC(),
	}
	stale := article.RawArticleRecord{
		Ticker:      "AAPL",
		Title:       "old headline",
		URL:         "https://x/stale",
		CollectedAt: time.Now().UTC().Add(-48 * time.Hour),
	}

	insights := &fakeInsights{}
	p := NewAnalyze(AnalyzeConfig{
		Articles: &fakeArticles{recent: []article.RawArticleRecord{fresh, stale}},
		Insights: insights,
		Gateway: testGateway(func(ctx context.Context, pay llm.Payload) (*llm.ProviderResponse, error) {
			return &llm.ProviderResponse{Model: pay.Model, Content: analysisJSON, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 10}}, nil
		}),
		Recorder: jobs.NewRecorder(&fakeJobRuns{}),
		MaxChars: 2000,
		Lookback: 24 * time.Hour,
	})

	_, err := p.Run(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, insights.saved, 1)
	require.Len(t, insights.saved[0].refs, 1)
	assert.Equal(t, "https://x/fresh", insights.saved[0].refs[0].URL)
}

func TestAnalyze_DailyBudgetBlocksCall(t *testing.T) {
	jobRuns := &fakeJobRuns{}
	usageRepo := &fakeUsage{}
	require.NoError(t, usageRepo.Store(context.Background(), &usage.Log{Ticker: "AAPL", CostUSD: 0.8}))
	require.NoError(t, usageRepo.Store(context.Background(), &usage.Log{Ticker: "AAPL", CostUSD: 0.3}))

	calls := 0
	p := NewAnalyze(AnalyzeConfig{
		Articles: &fakeArticles{recent: recentArticles(2)},
		Insights: &fakeInsights{},
		Usage:    usageRepo,
		Gateway: testGateway(func(ctx context.Context, pay llm.Payload) (*llm.ProviderResponse, error) {
			calls++
			return nil, nil
		}),
		Recorder:        jobs.NewRecorder(jobRuns),
		MaxChars:        2000,
		DailyCostCapUSD: 1.0,
	})

	_, err := p.Run(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCostCapExceeded))

	// Blocked before any billable provider call.
	assert.Equal(t, 0, calls)
	assert.Equal(t, jobrun.StatusFailed, jobRuns.lastFinished().Status)
}

func TestAnalyze_DailyBudgetUnderCapProceeds(t *testing.T) {
	usageRepo := &fakeUsage{}
	require.NoError(t, usageRepo.Store(context.Background(), &usage.Log{Ticker: "AAPL", CostUSD: 0.2}))

	insights := &fakeInsights{}
	p := NewAnalyze(AnalyzeConfig{
		Articles: &fakeArticles{recent: recentArticles(1)},
		Insights: insights,
		Usage:    usageRepo,
		Gateway: testGateway(func(ctx context.Context, pay llm.Payload) (*llm.ProviderResponse, error) {
			return &llm.ProviderResponse{Model: pay.Model, Content: analysisJSON, Usage: llm.Usage{PromptTokens: 10, CompletionTokens: 10}}, nil
		}),
		Recorder:        jobs.NewRecorder(&fakeJobRuns{}),
		MaxChars:        2000,
		DailyCostCapUSD: 1.0,
	})

	_, err := p.Run(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Len(t, insights.saved, 1)
}
