package article

import (
	"context"
	"time"
)

// Repository defines persistence operations for raw articles.
// Fingerprint uniqueness at the storage layer is the authoritative dedupe;
// callers may pre-filter with a keystore but must tolerate insert skips.
type Repository interface {
	// GetExistingFingerprints returns the subset of fps already stored.
	GetExistingFingerprints(ctx context.Context, fps []string) (map[string]struct{}, error)

	// SaveArticles inserts records, skipping fingerprint conflicts.
	// Returns the number of rows actually inserted.
	SaveArticles(ctx context.Context, records []RawArticleRecord) (int, error)

	// ListCollectedSince returns records collected at or after the cutoff,
	// newest first.
	ListCollectedSince(ctx context.Context, ticker string, since time.Time) ([]RawArticleRecord, error)
}
