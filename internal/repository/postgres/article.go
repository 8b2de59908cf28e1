package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"hermes/internal/domain/article"
)

// Compile-time check
var _ article.Repository = (*ArticleRepository)(nil)

// ArticleRepository implements article.Repository using sqlx.
// The unique index on fingerprint is the authoritative dedupe layer:
// conflicting inserts are skipped, never merged.
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// GetExistingFingerprints returns the subset of fps already stored
func (r *ArticleRepository) GetExistingFingerprints(ctx context.Context, fps []string) (map[string]struct{}, error) {
	if len(fps) == 0 {
		return map[string]struct{}{}, nil
	}

	var existing []string
	query := `SELECT fingerprint FROM raw_articles WHERE fingerprint = ANY($1)`
	if err := r.db.SelectContext(ctx, &existing, query, pq.Array(fps)); err != nil {
		return nil, err
	}

	result := make(map[string]struct{}, len(existing))
	for _, fp := range existing {
		result[fp] = struct{}{}
	}
	return result, nil
}

// SaveArticles inserts records, skipping fingerprint conflicts
func (r *ArticleRepository) SaveArticles(ctx context.Context, records []article.RawArticleRecord) (int, error) {
	query := `
		INSERT INTO raw_articles (
			id, ticker, source, source_type, title, body, url,
			fingerprint, collected_at, published_at, language, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (fingerprint) DO NOTHING`

	saved := 0
	for _, rec := range records {
		id := rec.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		res, err := r.db.ExecContext(ctx, query,
			id, rec.Ticker, rec.Source, rec.SourceType, rec.Title, rec.Body, rec.URL,
			rec.Fingerprint, rec.CollectedAt, rec.PublishedAt, rec.Language, createdAt,
		)
		if err != nil {
			return saved, err
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			saved++
		}
	}
	return saved, nil
}

// ListCollectedSince returns records collected at or after the cutoff,
// newest first
func (r *ArticleRepository) ListCollectedSince(ctx context.Context, ticker string, since time.Time) ([]article.RawArticleRecord, error) {
	var records []article.RawArticleRecord

	query := `
		SELECT * FROM raw_articles
		WHERE ticker = $1 AND collected_at >= $2
		ORDER BY collected_at DESC`

	if err := r.db.SelectContext(ctx, &records, query, ticker, since); err != nil {
		return nil, err
	}
	return records, nil
}
