package connector

import (
	"context"
	"strings"
	"time"

	"hermes/internal/domain/article"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// DefaultMaxAttempts bounds sequential retries on transient fetch errors.
const DefaultMaxAttempts = 3

// RawItem is one upstream item before normalization. Field names vary per
// source, so normalization probes the common fallbacks.
type RawItem map[string]interface{}

// Source is implemented by each concrete upstream: HTTP polling, feed
// polling, or an injected function for tests.
type Source interface {
	// Name is the source identifier persisted with every record.
	Name() string

	// Type is the source category (news, feed, press).
	Type() string

	// FetchRaw returns raw items for a ticker. since may be zero.
	FetchRaw(ctx context.Context, ticker string, since time.Time) ([]RawItem, error)
}

// Connector wraps a Source with retry, normalization and within-batch
// dedupe. It performs no keystore or database I/O.
type Connector struct {
	src Source
	log *logger.Logger
}

// New creates a connector for the given source.
func New(src Source) *Connector {
	return &Connector{
		src: src,
		log: logger.Get().With("component", "connector", "source", src.Name()),
	}
}

// SourceName returns the identifier of the wrapped source.
func (c *Connector) SourceName() string {
	return c.src.Name()
}

// Fetch retrieves, normalizes and dedupes one batch. Transient errors are
// retried up to maxAttempts; the last one is returned when attempts run
// out. A permanent error aborts immediately without consuming attempts.
func (c *Connector) Fetch(ctx context.Context, ticker string, since time.Time, maxAttempts int) ([]article.RawArticleRecord, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := c.src.FetchRaw(ctx, ticker, since)
		if err == nil {
			return c.normalizeAndDedupe(ticker, raw), nil
		}

		if IsPermanent(err) {
			return nil, err
		}
		if !IsTransient(err) {
			// Unclassified errors are not retried.
			return nil, Permanent(c.src.Name(), err)
		}

		lastErr = err
		if attempt < maxAttempts {
			c.log.Warnf("Transient fetch error for %s (attempt %d/%d): %v", ticker, attempt, maxAttempts, err)
		}
	}
	return nil, lastErr
}

// normalizeAndDedupe maps raw items to records and drops within-batch
// fingerprint duplicates, first occurrence wins, order preserved.
func (c *Connector) normalizeAndDedupe(ticker string, items []RawItem) []article.RawArticleRecord {
	seen := make(map[string]struct{}, len(items))
	records := make([]article.RawArticleRecord, 0, len(items))
	now := time.Now().UTC()

	for _, item := range items {
		rec := c.normalizeItem(ticker, item, now)
		if _, ok := seen[rec.Fingerprint]; ok {
			continue
		}
		seen[rec.Fingerprint] = struct{}{}
		records = append(records, rec)
	}
	return records
}

func (c *Connector) normalizeItem(ticker string, item RawItem, collectedAt time.Time) article.RawArticleRecord {
	title := strings.TrimSpace(stringField(item, "title"))
	body := strings.TrimSpace(stringField(item, "body", "description", "summary"))
	url := strings.TrimSpace(stringField(item, "url", "link"))
	language := stringField(item, "language")
	publishedAt := timeField(item, "published_at", "published", "publishedAt")

	return article.RawArticleRecord{
		Ticker:      strings.ToUpper(strings.TrimSpace(ticker)),
		Source:      c.src.Name(),
		SourceType:  c.src.Type(),
		Title:       title,
		Body:        body,
		URL:         url,
		Fingerprint: article.Fingerprint(url, title),
		CollectedAt: collectedAt,
		PublishedAt: publishedAt,
		Language:    language,
	}
}

// stringField returns the first non-empty string among the given keys.
func stringField(item RawItem, keys ...string) string {
	for _, k := range keys {
		if v, ok := item[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// timeField parses the first present timestamp among the given keys.
// Accepts time.Time values and RFC3339 strings.
func timeField(item RawItem, keys ...string) *time.Time {
	for _, k := range keys {
		v, ok := item[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case time.Time:
			return &t
		case *time.Time:
			return t
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return &parsed
			}
		}
	}
	return nil
}

func asError(err error, target interface{}) bool {
	return errors.As(err, target)
}
