package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"hermes/internal/domain/insight"
	"hermes/internal/metrics"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Config carries the gateway's model selection and resource bounds.
// Values come validated from the configuration surface.
type Config struct {
	APIKey           string
	Model            string
	MaxTokens        int
	Temperature      float64
	CostCapUSD       float64
	RequestTimeout   time.Duration
	RetryMaxAttempts int

	// RatePerMinute throttles provider calls; 0 disables throttling.
	RatePerMinute float64
}

// Gateway wraps a provider call with payload construction, cost gating,
// timeout enforcement and bounded retry. Providers are injected at
// construction; when nil, real OpenAI-backed implementations are used.
type Gateway struct {
	cfg            Config
	provider       ProviderFunc
	streamProvider StreamProviderFunc
	limiter        *rate.Limiter
	log            *logger.Logger
}

// Option customizes gateway construction.
type Option func(*Gateway)

// WithProvider injects the structured completion provider.
func WithProvider(p ProviderFunc) Option {
	return func(g *Gateway) { g.provider = p }
}

// WithStreamProvider injects the streaming completion provider.
func WithStreamProvider(p StreamProviderFunc) Option {
	return func(g *Gateway) { g.streamProvider = p }
}

// NewGateway creates a gateway. Without injected providers it builds the
// default OpenAI providers from cfg.APIKey.
func NewGateway(cfg Config, opts ...Option) *Gateway {
	g := &Gateway{
		cfg: cfg,
		log: logger.Get().With("component", "llm_gateway", "model", cfg.Model),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.provider == nil {
		g.provider = newOpenAIProvider(cfg.APIKey)
	}
	if g.streamProvider == nil {
		g.streamProvider = newOpenAIStreamProvider(cfg.APIKey)
	}
	if cfg.RatePerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerMinute/60.0), 1)
	}
	return g
}

// Model returns the configured model name.
func (g *Gateway) Model() string {
	return g.cfg.Model
}

// buildPayload constructs the JSON-mode chat payload for an analysis call.
func (g *Gateway) buildPayload(in *insight.AnalysisInput) Payload {
	return Payload{
		Model:       g.cfg.Model,
		Messages:    BuildAnalysisMessages(in),
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		JSONMode:    true,
	}
}

// analysisPayload mirrors the JSON document the model is instructed to
// produce.
type analysisPayload struct {
	SummaryText string                `json:"summary_text"`
	Keywords    []string              `json:"keywords"`
	Sentiment   float64               `json:"sentiment_score"`
	Anomalies   []insight.AnomalyItem `json:"anomalies"`
}

// Analyze runs one structured completion with bounded retry. The elapsed
// wall clock is measured across the whole retry loop, so repeated quick
// failures cannot stretch total latency past RequestTimeout.
func (g *Gateway) Analyze(ctx context.Context, in *insight.AnalysisInput) (*insight.AnalysisResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	payload := g.buildPayload(in)
	start := time.Now()

	// Hard I/O deadline shared by every attempt: a provider that blocks
	// without producing a response cannot outlive the request timeout.
	callCtx, cancel := context.WithDeadline(ctx, start.Add(g.cfg.RequestTimeout))
	defer cancel()

	maxAttempts := g.cfg.RetryMaxAttempts + 1
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := g.checkElapsed(start); err != nil {
			return nil, err
		}
		if g.limiter != nil {
			if err := g.limiter.Wait(callCtx); err != nil {
				return nil, Transient(errors.Wrap(err, "rate limiter wait"))
			}
		}

		resp, err := g.provider(callCtx, payload)
		if err != nil {
			if IsPermanent(err) {
				return nil, err
			}
			lastErr = err
			if elapsedErr := g.checkElapsed(start); elapsedErr != nil {
				return nil, elapsedErr
			}
			continue
		}

		model := resp.Model
		if model == "" {
			model = g.cfg.Model
		}

		cost := EstimateCost(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
		if cost.GreaterThan(decimal.NewFromFloat(g.cfg.CostCapUSD)) {
			// The tokens are already billed upstream; retrying would only
			// bill them again.
			metrics.LLMCostCapRejections.WithLabelValues(model, "structured").Inc()
			return nil, Permanent(errors.Wrapf(errors.ErrCostCapExceeded,
				"estimated $%s exceeds cap $%.4f", cost.StringFixed(6), g.cfg.CostCapUSD))
		}

		var parsed analysisPayload
		if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
			if attempt < maxAttempts {
				lastErr = Transient(errors.Wrap(errors.ErrResponseMalformed, err.Error()))
				if elapsedErr := g.checkElapsed(start); elapsedErr != nil {
					return nil, elapsedErr
				}
				continue
			}
			return nil, Permanent(errors.Wrap(errors.ErrResponseMalformed, err.Error()))
		}

		result := &insight.AnalysisResult{
			Ticker:        in.Ticker,
			SummaryText:   parsed.SummaryText,
			Keywords:      parsed.Keywords,
			Sentiment:     parsed.Sentiment,
			Anomalies:     parsed.Anomalies,
			Model:         model,
			PromptTokens:  resp.Usage.PromptTokens,
			OutputTokens:  resp.Usage.CompletionTokens,
			EstimatedCost: cost.InexactFloat64(),
		}
		// A schema violation here is a contract error, not a retry case.
		if err := result.Normalize(); err != nil {
			return nil, err
		}
		return result, nil
	}

	return nil, Transient(errors.Wrapf(lastErr, "retry budget exhausted after %d attempts", maxAttempts))
}

// checkElapsed enforces the shared wall-clock budget across retries.
func (g *Gateway) checkElapsed(start time.Time) error {
	if time.Since(start) > g.cfg.RequestTimeout {
		return Transient(errors.Wrapf(errors.ErrTimeout, "elapsed %s exceeds %s", time.Since(start).Round(time.Millisecond), g.cfg.RequestTimeout))
	}
	return nil
}
