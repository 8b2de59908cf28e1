package connector

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"context"

	"hermes/internal/adapters/config"
	"hermes/pkg/errors"
)

// NewsAPISource polls a NewsAPI-style JSON endpoint.
type NewsAPISource struct {
	cfg    config.NewsAPIConfig
	client *http.Client
}

var _ Source = (*NewsAPISource)(nil)

// NewNewsAPISource creates the HTTP polling source.
func NewNewsAPISource(cfg config.NewsAPIConfig) *NewsAPISource {
	return &NewsAPISource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (s *NewsAPISource) Name() string { return "news_api" }
func (s *NewsAPISource) Type() string { return "news" }

// FetchRaw queries the endpoint for articles mentioning the ticker.
func (s *NewsAPISource) FetchRaw(ctx context.Context, ticker string, since time.Time) ([]RawItem, error) {
	if s.cfg.APIKey == "" {
		return nil, Permanent(s.Name(), errors.ErrMissingCredentials)
	}

	q := url.Values{}
	q.Set("q", ticker)
	q.Set("pageSize", fmt.Sprintf("%d", s.cfg.PageSize))
	q.Set("language", s.cfg.Language)
	q.Set("sortBy", "publishedAt")
	if !since.IsZero() {
		q.Set("from", since.UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, Permanent(s.Name(), errors.Wrap(err, "create request"))
	}
	req.Header.Set("X-Api-Key", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, Transient(s.Name(), errors.Wrap(err, "send request"))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(s.Name(), errors.Wrap(err, "read response"))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to parse
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, Transient(s.Name(), errors.Wrapf(errors.ErrRateLimitExceeded, "status %d", resp.StatusCode))
	case resp.StatusCode >= 500:
		return nil, Transient(s.Name(), errors.Wrapf(errors.ErrSourceUnavailable, "status %d: %s", resp.StatusCode, string(body)))
	default:
		return nil, Permanent(s.Name(), errors.Newf("news api error (%d): %s", resp.StatusCode, string(body)))
	}

	var parsed struct {
		Status   string `json:"status"`
		Articles []struct {
			Title       string `json:"title"`
			Description string `json:"description"`
			Content     string `json:"content"`
			URL         string `json:"url"`
			PublishedAt string `json:"publishedAt"`
			Language    string `json:"language"`
		} `json:"articles"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, Permanent(s.Name(), errors.Wrap(errors.ErrMalformedSource, err.Error()))
	}

	items := make([]RawItem, 0, len(parsed.Articles))
	for _, a := range parsed.Articles {
		item := RawItem{
			"title":       a.Title,
			"url":         a.URL,
			"publishedAt": a.PublishedAt,
		}
		if a.Content != "" {
			item["body"] = a.Content
		} else {
			item["description"] = a.Description
		}
		if a.Language != "" {
			item["language"] = a.Language
		}
		items = append(items, item)
	}
	return items, nil
}
