package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"hermes/internal/domain/article"
	"hermes/internal/domain/insight"
	"hermes/internal/domain/jobrun"
	"hermes/internal/domain/usage"
	"hermes/internal/jobs"
	"hermes/internal/llm"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// DefaultArticleLimit is how many articles feed one analysis call.
const DefaultArticleLimit = 5

// DefaultAnalyzeLookback is how far back the stage looks for articles
// when no window is configured.
const DefaultAnalyzeLookback = 24 * time.Hour

// Analyze selects the newest articles collected within the lookback
// window, runs one structured gateway call and persists the resulting
// insight with its source refs.
type Analyze struct {
	articles articles
	insights insight.Repository
	usage    usage.Repository
	gateway  *llm.Gateway
	recorder *jobs.Recorder

	locale       string
	maxChars     int
	articleLimit int
	lookback     time.Duration
	dailyCostCap float64
	log          *logger.Logger
}

// articles is the subset of article.Repository the analyze stage needs.
type articles interface {
	ListCollectedSince(ctx context.Context, ticker string, since time.Time) ([]article.RawArticleRecord, error)
}

// AnalyzeConfig wires the analyze pipeline dependencies. Usage may be nil
// when no analytics sink is configured.
type AnalyzeConfig struct {
	Articles article.Repository
	Insights insight.Repository
	Usage    usage.Repository
	Gateway  *llm.Gateway
	Recorder *jobs.Recorder

	Locale       string
	MaxChars     int
	ArticleLimit int
	Lookback     time.Duration

	// DailyCostCapUSD blocks further analysis once a ticker's spend for
	// the day reaches it. Zero disables the budget; it needs Usage.
	DailyCostCapUSD float64
}

// NewAnalyze creates the analyze pipeline.
func NewAnalyze(cfg AnalyzeConfig) *Analyze {
	limit := cfg.ArticleLimit
	if limit <= 0 {
		limit = DefaultArticleLimit
	}
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = DefaultAnalyzeLookback
	}
	return &Analyze{
		articles:     cfg.Articles,
		insights:     cfg.Insights,
		usage:        cfg.Usage,
		gateway:      cfg.Gateway,
		recorder:     cfg.Recorder,
		locale:       cfg.Locale,
		maxChars:     cfg.MaxChars,
		articleLimit: limit,
		lookback:     lookback,
		dailyCostCap: cfg.DailyCostCapUSD,
		log:          logger.Get().With("component", "analyze_pipeline"),
	}
}

// Run analyzes one ticker. Returns uuid.Nil without error when there is
// nothing to analyze.
func (p *Analyze) Run(ctx context.Context, ticker string) (id uuid.UUID, retErr error) {
	scope, err := p.recorder.Start(ctx, jobs.StartParams{
		Stage:    jobrun.StageAnalyze,
		Ticker:   ticker,
		TaskName: "analyze_articles",
	})
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { scope.Finish(ctx, retErr) }()

	recs, err := p.articles.ListCollectedSince(ctx, ticker, time.Now().Add(-p.lookback))
	if err != nil {
		return uuid.Nil, err
	}
	if len(recs) == 0 {
		p.log.Debugf("No articles for %s, skipping analysis", ticker)
		return uuid.Nil, nil
	}
	// Records come newest first; keep the freshest under the limit.
	if len(recs) > p.articleLimit {
		recs = recs[:p.articleLimit]
	}

	if err := p.checkDailyBudget(ctx, ticker); err != nil {
		return uuid.Nil, err
	}

	items := make([]insight.InputArticle, 0, len(recs))
	refs := make([]insight.SourceRef, 0, len(recs))
	for _, rec := range recs {
		items = append(items, insight.InputArticle{
			Title:       rec.Title,
			Body:        rec.Body,
			URL:         rec.URL,
			Language:    rec.Language,
			PublishedAt: rec.PublishedAt,
		})
		refs = append(refs, insight.SourceRef{URL: rec.URL, CollectedAt: rec.CollectedAt})
	}

	in := &insight.AnalysisInput{
		Ticker:   ticker,
		Locale:   p.locale,
		Items:    items,
		MaxChars: p.maxChars,
	}

	start := time.Now()
	result, err := p.gateway.Analyze(ctx, in)
	latency := time.Since(start)

	if err != nil {
		metrics.RecordLLMCall(p.gateway.Model(), "structured", latency, 0, 0, 0, err)
		return uuid.Nil, err
	}
	metrics.RecordLLMCall(result.Model, "structured", latency,
		result.EstimatedCost, result.PromptTokens, result.OutputTokens, nil)

	id, err = p.insights.SaveInsight(ctx, result, refs)
	if err != nil {
		return uuid.Nil, err
	}

	p.recordUsage(ctx, scope.Run().TraceID, result, latency)

	p.log.Infof("Analyzed %s: insight=%s articles=%d cost=$%.6f",
		ticker, id, len(recs), result.EstimatedCost)
	return id, nil
}

// checkDailyBudget blocks the provider call once the ticker's spend for
// the current day reaches the cap. A failed budget lookup is logged and
// the call proceeds under the per-call cap alone.
func (p *Analyze) checkDailyBudget(ctx context.Context, ticker string) error {
	if p.usage == nil || p.dailyCostCap <= 0 {
		return nil
	}

	spent, err := p.usage.GetDailyCost(ctx, ticker, time.Now().UTC())
	if err != nil {
		p.log.Warnf("Daily cost lookup failed for %s: %v", ticker, err)
		return nil
	}
	if spent >= p.dailyCostCap {
		metrics.LLMCostCapRejections.WithLabelValues(p.gateway.Model(), "daily").Inc()
		return errors.Wrapf(errors.ErrCostCapExceeded,
			"daily spend $%.4f at cap $%.4f for %s", spent, p.dailyCostCap, ticker)
	}
	return nil
}

// recordUsage writes the usage log entry. The analytics sink is optional
// and its failures never fail the pipeline.
func (p *Analyze) recordUsage(ctx context.Context, traceID string, result *insight.AnalysisResult, latency time.Duration) {
	if p.usage == nil {
		return
	}

	now := time.Now().UTC()
	entry := &usage.Log{
		Timestamp:        now,
		EventID:          uuid.NewString(),
		Ticker:           result.Ticker,
		TaskName:         "analyze_articles",
		TraceID:          traceID,
		Provider:         "openai",
		ModelID:          result.Model,
		PromptTokens:     uint32(result.PromptTokens),
		CompletionTokens: uint32(result.OutputTokens),
		TotalTokens:      uint32(result.PromptTokens + result.OutputTokens),
		CostUSD:          result.EstimatedCost,
		LatencyMs:        uint32(latency.Milliseconds()),
		Attempts:         1,
		CreatedAt:        now,
	}

	if err := p.usage.Store(ctx, entry); err != nil {
		p.log.Warnf("Failed to record usage for %s: %v", result.Ticker, err)
	}
}
