package article

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RawArticleRecord is the normalized representation of one external item.
// Records are immutable after collection: duplicates are rejected by
// fingerprint, never merged.
type RawArticleRecord struct {
	ID          uuid.UUID  `db:"id"`
	Ticker      string     `db:"ticker"`
	Source      string     `db:"source"`
	SourceType  string     `db:"source_type"`
	Title       string     `db:"title"`
	Body        string     `db:"body"`
	URL         string     `db:"url"`
	Fingerprint string     `db:"fingerprint"`
	CollectedAt time.Time  `db:"collected_at"`
	PublishedAt *time.Time `db:"published_at"`
	Language    string     `db:"language"`
	CreatedAt   time.Time  `db:"created_at"`
}

// Fingerprint derives the dedupe identity for an article. It depends only
// on the canonical URL and title, so body differences never produce a new
// identity for the same story.
func Fingerprint(url, title string) string {
	data := strings.TrimSpace(url) + "\n" + strings.TrimSpace(title)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
