package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"hermes/internal/domain/insight"
	"hermes/pkg/errors"
)

// Compile-time check
var _ insight.Repository = (*InsightRepository)(nil)

// InsightRepository implements insight.Repository using sqlx
type InsightRepository struct {
	db *sqlx.DB
}

// NewInsightRepository creates a new insight repository
func NewInsightRepository(db *sqlx.DB) *InsightRepository {
	return &InsightRepository{db: db}
}

type insightRow struct {
	ID            uuid.UUID  `db:"id"`
	Ticker        string     `db:"ticker"`
	SummaryText   string     `db:"summary_text"`
	Keywords      []byte     `db:"keywords"`
	Sentiment     float64    `db:"sentiment_score"`
	Anomalies     []byte     `db:"anomalies"`
	GeneratedAt   time.Time  `db:"generated_at"`
	Model         string     `db:"llm_model"`
	PromptTokens  int        `db:"llm_tokens_prompt"`
	OutputTokens  int        `db:"llm_tokens_completion"`
	EstimatedCost float64    `db:"llm_cost"`
	SourceRefs    []byte     `db:"source_refs"`
	DeliveredAt   *time.Time `db:"delivered_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

// SaveInsight stores a result with its source references
func (r *InsightRepository) SaveInsight(ctx context.Context, result *insight.AnalysisResult, refs []insight.SourceRef) (uuid.UUID, error) {
	keywords, err := json.Marshal(result.Keywords)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "marshal keywords")
	}
	anomalies, err := json.Marshal(result.Anomalies)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "marshal anomalies")
	}
	sourceRefs, err := json.Marshal(refs)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "marshal source refs")
	}

	id := uuid.New()
	query := `
		INSERT INTO processed_insights (
			id, ticker, summary_text, keywords, sentiment_score, anomalies,
			generated_at, llm_model, llm_tokens_prompt, llm_tokens_completion,
			llm_cost, source_refs, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.ExecContext(ctx, query,
		id, result.Ticker, result.SummaryText, keywords, result.Sentiment, anomalies,
		result.GeneratedAt, result.Model, result.PromptTokens, result.OutputTokens,
		result.EstimatedCost, sourceRefs, time.Now().UTC(),
	)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ListUndelivered returns insights not yet handled by the deliver stage
func (r *InsightRepository) ListUndelivered(ctx context.Context, limit int) ([]insight.StoredInsight, error) {
	var rows []insightRow

	query := `
		SELECT * FROM processed_insights
		WHERE delivered_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`

	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}

	stored := make([]insight.StoredInsight, 0, len(rows))
	for _, row := range rows {
		item, err := row.toStored()
		if err != nil {
			return nil, err
		}
		stored = append(stored, item)
	}
	return stored, nil
}

// MarkDelivered flags an insight as handled
func (r *InsightRepository) MarkDelivered(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE processed_insights SET delivered_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	return err
}

func (row insightRow) toStored() (insight.StoredInsight, error) {
	var keywords []string
	if len(row.Keywords) > 0 {
		if err := json.Unmarshal(row.Keywords, &keywords); err != nil {
			return insight.StoredInsight{}, errors.Wrap(err, "unmarshal keywords")
		}
	}
	var anomalies []insight.AnomalyItem
	if len(row.Anomalies) > 0 {
		if err := json.Unmarshal(row.Anomalies, &anomalies); err != nil {
			return insight.StoredInsight{}, errors.Wrap(err, "unmarshal anomalies")
		}
	}
	var refs []insight.SourceRef
	if len(row.SourceRefs) > 0 {
		if err := json.Unmarshal(row.SourceRefs, &refs); err != nil {
			return insight.StoredInsight{}, errors.Wrap(err, "unmarshal source refs")
		}
	}

	return insight.StoredInsight{
		ID: row.ID,
		Result: insight.AnalysisResult{
			Ticker:        row.Ticker,
			SummaryText:   row.SummaryText,
			Keywords:      keywords,
			Sentiment:     row.Sentiment,
			Anomalies:     anomalies,
			GeneratedAt:   row.GeneratedAt,
			Model:         row.Model,
			PromptTokens:  row.PromptTokens,
			OutputTokens:  row.OutputTokens,
			EstimatedCost: row.EstimatedCost,
		},
		SourceRefs: refs,
		CreatedAt:  row.CreatedAt,
	}, nil
}
