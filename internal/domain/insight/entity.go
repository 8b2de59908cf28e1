package insight

import (
	"strings"
	"time"

	"hermes/pkg/errors"
)

const (
	// MaxKeywords caps the keyword list after case-insensitive dedupe.
	MaxKeywords = 10

	// MinPromptChars is the smallest usable prompt character budget.
	MinPromptChars = 500

	maxSummaryChars = 4000
	maxLabelChars   = 64
	maxDescChars    = 512
)

// InputArticle is a single article handed to the analysis prompt.
type InputArticle struct {
	Title       string
	Body        string
	URL         string
	Language    string
	PublishedAt *time.Time
}

// AnalysisInput is the request contract for the structured LLM call.
type AnalysisInput struct {
	Ticker string
	Locale string
	Items  []InputArticle

	// MaxChars bounds the user prompt built from Items.
	MaxChars int
}

// Validate checks the input container before any provider call is made.
func (in *AnalysisInput) Validate() error {
	in.Ticker = strings.ToUpper(strings.TrimSpace(in.Ticker))
	if in.Ticker == "" {
		return errors.NewValidationError("ticker", "must not be blank", in.Ticker)
	}
	if len(in.Items) == 0 {
		return errors.NewValidationError("items", "at least one article required", 0)
	}
	if in.MaxChars < MinPromptChars {
		return errors.NewValidationError("max_chars", "below minimum prompt budget", in.MaxChars)
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.Title) == "" {
			return errors.NewValidationError("items.title", "must not be blank", i)
		}
		if strings.TrimSpace(it.Body) == "" {
			return errors.NewValidationError("items.body", "must not be blank", i)
		}
	}
	return nil
}

// AnomalyItem is one detected anomaly with its confidence score.
type AnomalyItem struct {
	Label       string  `json:"label"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// AnalysisResult is the validated structured response of one LLM call.
// Score bounds are load-bearing: sentiment and anomaly values feed cost
// accounting and alert thresholds downstream.
type AnalysisResult struct {
	Ticker        string        `json:"ticker"`
	SummaryText   string        `json:"summary_text"`
	Keywords      []string      `json:"keywords"`
	Sentiment     float64       `json:"sentiment_score"`
	Anomalies     []AnomalyItem `json:"anomalies"`
	GeneratedAt   time.Time     `json:"generated_at"`
	Model         string        `json:"llm_model"`
	PromptTokens  int           `json:"llm_tokens_prompt"`
	OutputTokens  int           `json:"llm_tokens_completion"`
	EstimatedCost float64       `json:"llm_cost"`
}

// Normalize applies the schema rules in place and reports the first
// violation. Keywords are deduped case-insensitively, order preserved,
// capped at MaxKeywords.
func (r *AnalysisResult) Normalize() error {
	r.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	if r.Ticker == "" {
		return errors.NewValidationError("ticker", "must not be blank", r.Ticker)
	}

	r.SummaryText = strings.TrimSpace(r.SummaryText)
	if r.SummaryText == "" {
		return errors.NewValidationError("summary_text", "must not be blank", r.SummaryText)
	}
	if len(r.SummaryText) > maxSummaryChars {
		r.SummaryText = r.SummaryText[:maxSummaryChars]
	}

	if r.Sentiment < -1.0 || r.Sentiment > 1.0 {
		return errors.NewValidationError("sentiment_score", "out of [-1.0, 1.0]", r.Sentiment)
	}

	r.Keywords = dedupeKeywords(r.Keywords)

	for i := range r.Anomalies {
		a := &r.Anomalies[i]
		a.Label = strings.TrimSpace(a.Label)
		a.Description = strings.TrimSpace(a.Description)
		if a.Label == "" {
			return errors.NewValidationError("anomalies.label", "must not be blank", i)
		}
		if len(a.Label) > maxLabelChars {
			a.Label = a.Label[:maxLabelChars]
		}
		if a.Description == "" {
			return errors.NewValidationError("anomalies.description", "must not be blank", i)
		}
		if len(a.Description) > maxDescChars {
			a.Description = a.Description[:maxDescChars]
		}
		if a.Score < 0.0 || a.Score > 1.0 {
			return errors.NewValidationError("anomalies.score", "out of [0.0, 1.0]", a.Score)
		}
	}

	if r.PromptTokens < 0 || r.OutputTokens < 0 {
		return errors.NewValidationError("llm_tokens", "must be non-negative", r.PromptTokens)
	}
	if r.EstimatedCost < 0 {
		return errors.NewValidationError("llm_cost", "must be non-negative", r.EstimatedCost)
	}

	if r.GeneratedAt.IsZero() {
		r.GeneratedAt = time.Now().UTC()
	}
	return nil
}

func dedupeKeywords(kws []string) []string {
	cleaned := make([]string, 0, len(kws))
	seen := make(map[string]struct{}, len(kws))
	for _, kw := range kws {
		s := strings.TrimSpace(kw)
		if s == "" {
			continue
		}
		lower := strings.ToLower(s)
		if _, ok := seen[lower]; ok {
			continue
		}
		cleaned = append(cleaned, s)
		seen[lower] = struct{}{}
		if len(cleaned) >= MaxKeywords {
			break
		}
	}
	return cleaned
}

// MaxAnomalyScore returns the highest anomaly score, or 0 when none exist.
func (r *AnalysisResult) MaxAnomalyScore() float64 {
	max := 0.0
	for _, a := range r.Anomalies {
		if a.Score > max {
			max = a.Score
		}
	}
	return max
}
