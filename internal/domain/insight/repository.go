package insight

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SourceRef ties a saved insight back to the articles it was built from.
type SourceRef struct {
	URL         string    `json:"url"`
	CollectedAt time.Time `json:"collected_at"`
}

// StoredInsight is a persisted analysis result with its source references.
type StoredInsight struct {
	ID         uuid.UUID
	Result     AnalysisResult
	SourceRefs []SourceRef
	CreatedAt  time.Time
}

// Repository persists analysis results.
type Repository interface {
	// SaveInsight stores a result with its source references and returns the new id.
	SaveInsight(ctx context.Context, result *AnalysisResult, refs []SourceRef) (uuid.UUID, error)

	// ListUndelivered returns insights not yet picked up by the deliver stage.
	ListUndelivered(ctx context.Context, limit int) ([]StoredInsight, error)

	// MarkDelivered flags an insight as handled by the deliver stage.
	MarkDelivered(ctx context.Context, id uuid.UUID) error
}
