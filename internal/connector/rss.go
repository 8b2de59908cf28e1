package connector

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"time"

	"hermes/pkg/errors"
)

// RSSSource polls an RSS 2.0 feed. The feed URL is expected to embed the
// ticker query itself (one feed per subscription).
type RSSSource struct {
	feedURL string
	client  *http.Client
}

var _ Source = (*RSSSource)(nil)

// NewRSSSource creates the feed polling source.
func NewRSSSource(feedURL string, timeout time.Duration) *RSSSource {
	return &RSSSource{
		feedURL: feedURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *RSSSource) Name() string { return "rss" }
func (s *RSSSource) Type() string { return "news" }

type rssFeed struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Language    string `xml:"language"`
}

// FetchRaw downloads and parses the feed. Items older than since are
// filtered out when their pubDate is parseable.
func (s *RSSSource) FetchRaw(ctx context.Context, ticker string, since time.Time) ([]RawItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return nil, Permanent(s.Name(), errors.Wrap(err, "create request"))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, Transient(s.Name(), errors.Wrap(err, "fetch feed"))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Transient(s.Name(), errors.Wrap(err, "read feed"))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, Transient(s.Name(), errors.Wrapf(errors.ErrSourceUnavailable, "status %d", resp.StatusCode))
	default:
		return nil, Permanent(s.Name(), errors.Newf("feed error (%d)", resp.StatusCode))
	}

	var feed rssFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, Permanent(s.Name(), errors.Wrap(errors.ErrMalformedSource, err.Error()))
	}

	items := make([]RawItem, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		published, ok := parsePubDate(it.PubDate)
		if ok && !since.IsZero() && published.Before(since) {
			continue
		}
		item := RawItem{
			"title":   it.Title,
			"summary": it.Description,
			"link":    it.Link,
		}
		if ok {
			item["published"] = published
		}
		if it.Language != "" {
			item["language"] = it.Language
		}
		items = append(items, item)
	}
	return items, nil
}

func parsePubDate(v string) (time.Time, bool) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
