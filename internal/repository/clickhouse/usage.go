package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"hermes/internal/domain/usage"
	"hermes/pkg/clickhouse"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Compile-time check
var _ usage.Repository = (*UsageRepository)(nil)

// UsageRepository implements usage.Repository for ClickHouse.
// Writes are buffered through a batch writer.
type UsageRepository struct {
	conn        driver.Conn
	batchWriter *clickhouse.BatchWriter
}

// NewUsageRepository creates a new usage repository with batch writer
func NewUsageRepository(conn driver.Conn) *UsageRepository {
	repo := &UsageRepository{conn: conn}

	repo.batchWriter = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig{
		FlushFunc:    repo.flushBatch,
		TableName:    "llm_usage",
		MaxBatchSize: 200,
		MaxAge:       5 * time.Second,
	})

	return repo
}

// Start begins the background flush loop
func (r *UsageRepository) Start(ctx context.Context) {
	r.batchWriter.Start(ctx)
}

// Stop gracefully shuts down the batch writer
func (r *UsageRepository) Stop(ctx context.Context) error {
	return r.batchWriter.Stop(ctx)
}

// Store saves a usage log entry (buffered, not immediate)
func (r *UsageRepository) Store(ctx context.Context, log *usage.Log) error {
	return r.batchWriter.Add(ctx, log)
}

// flushBatch performs one batch INSERT for all buffered rows. PrepareBatch
// accumulates rows in memory; the network call happens only on Send.
func (r *UsageRepository) flushBatch(ctx context.Context, batch []interface{}) error {
	if len(batch) == 0 {
		return nil
	}

	log := logger.Get().With("component", "llm_usage_batch")

	query := `
		INSERT INTO llm_usage (
			timestamp, event_id, ticker, task_name, trace_id,
			provider, model_id,
			prompt_tokens, completion_tokens, total_tokens,
			cost_usd, latency_ms, attempts, created_at
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?,
			?, ?, ?,
			?, ?, ?, ?
		)
	`

	start := time.Now()

	stmt, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}
	defer stmt.Close()

	validItems := 0
	for _, item := range batch {
		entry, ok := item.(*usage.Log)
		if !ok {
			log.Warnf("Skipping invalid item type: %T", item)
			continue
		}

		err := stmt.Append(
			entry.Timestamp, entry.EventID, entry.Ticker, entry.TaskName, entry.TraceID,
			entry.Provider, entry.ModelID,
			entry.PromptTokens, entry.CompletionTokens, entry.TotalTokens,
			entry.CostUSD, entry.LatencyMs, entry.Attempts, entry.CreatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "failed to append to batch")
		}
		validItems++
	}

	if err := stmt.Send(); err != nil {
		return errors.Wrap(err, "failed to send batch")
	}

	log.Infof("Batch inserted %d usage records in %v", validItems, time.Since(start))
	return nil
}

// GetDailyCost returns total cost for a ticker on a specific day
func (r *UsageRepository) GetDailyCost(ctx context.Context, ticker string, date time.Time) (float64, error) {
	query := `
		SELECT sum(cost_usd) as total_cost
		FROM llm_usage
		WHERE ticker = ? AND toDate(timestamp) = toDate(?)
	`

	var totalCost float64
	if err := r.conn.QueryRow(ctx, query, ticker, date).Scan(&totalCost); err != nil {
		return 0, errors.Wrap(err, "failed to get daily cost")
	}

	return totalCost, nil
}
