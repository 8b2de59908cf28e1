package pipeline

import (
	"context"
	"time"

	"hermes/internal/connector"
	"hermes/internal/dedupe"
	"hermes/internal/domain/article"
	"hermes/internal/domain/jobrun"
	"hermes/internal/jobs"
	"hermes/internal/metrics"
	"hermes/pkg/logger"
)

// CollectResult summarizes one collection run for a single source.
type CollectResult struct {
	Fetched         int
	Saved           int
	SkippedKeystore int
	SkippedDB       int
}

// Collect fetches articles from every configured source, dedupes them
// against the keystore and the database, and persists the survivors.
// Each source runs under its own job run scope.
type Collect struct {
	connectors []*connector.Connector
	articles   article.Repository
	keystore   dedupe.KeyStore
	recorder   *jobs.Recorder

	dedupeTTL   time.Duration
	maxAttempts int
	log         *logger.Logger
}

// CollectConfig wires the collect pipeline dependencies.
type CollectConfig struct {
	Connectors []*connector.Connector
	Articles   article.Repository
	Keystore   dedupe.KeyStore
	Recorder   *jobs.Recorder

	// DedupeTTL is the keystore expiry for newly seen fingerprints.
	DedupeTTL time.Duration

	// MaxAttempts bounds connector retries; 0 uses the connector default.
	MaxAttempts int
}

// NewCollect creates the collect pipeline.
func NewCollect(cfg CollectConfig) *Collect {
	return &Collect{
		connectors:  cfg.Connectors,
		articles:    cfg.Articles,
		keystore:    cfg.Keystore,
		recorder:    cfg.Recorder,
		dedupeTTL:   cfg.DedupeTTL,
		maxAttempts: cfg.MaxAttempts,
		log:         logger.Get().With("component", "collect_pipeline"),
	}
}

// Run collects one ticker from all sources. The first source error is
// returned after every source has had its turn; one broken source must
// not starve the others.
func (p *Collect) Run(ctx context.Context, ticker string, since time.Time) (CollectResult, error) {
	var total CollectResult
	var firstErr error

	for _, conn := range p.connectors {
		res, err := p.runSource(ctx, conn, ticker, since)
		total.Fetched += res.Fetched
		total.Saved += res.Saved
		total.SkippedKeystore += res.SkippedKeystore
		total.SkippedDB += res.SkippedDB

		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return total, firstErr
}

func (p *Collect) runSource(ctx context.Context, conn *connector.Connector, ticker string, since time.Time) (res CollectResult, retErr error) {
	scope, err := p.recorder.Start(ctx, jobs.StartParams{
		Stage:    jobrun.StageCollect,
		Ticker:   ticker,
		Source:   conn.SourceName(),
		TaskName: "collect_articles",
	})
	if err != nil {
		return res, err
	}
	defer func() { scope.Finish(ctx, retErr) }()

	records, err := conn.Fetch(ctx, ticker, since, p.maxAttempts)
	if err != nil {
		class := "permanent"
		if connector.IsTransient(err) {
			class = "transient"
		}
		metrics.SourceErrors.WithLabelValues(conn.SourceName(), class).Inc()
		return res, err
	}
	res.Fetched = len(records)
	metrics.ArticlesFetched.WithLabelValues(conn.SourceName(), ticker).Add(float64(len(records)))

	// Keystore is a cheap short-circuit only. Lookup failures fall through
	// to the database check.
	fresh := make([]article.RawArticleRecord, 0, len(records))
	for _, rec := range records {
		seen, err := p.keystore.Has(ctx, rec.Fingerprint)
		if err != nil {
			p.log.Warnf("Keystore lookup failed for %s: %v", rec.Fingerprint, err)
		} else if seen {
			res.SkippedKeystore++
			metrics.ArticlesSkipped.WithLabelValues(conn.SourceName(), ticker, "keystore").Inc()
			continue
		}
		fresh = append(fresh, rec)
	}

	if len(fresh) == 0 {
		return res, nil
	}

	fps := make([]string, 0, len(fresh))
	for _, rec := range fresh {
		fps = append(fps, rec.Fingerprint)
	}
	existing, err := p.articles.GetExistingFingerprints(ctx, fps)
	if err != nil {
		return res, err
	}

	toSave := make([]article.RawArticleRecord, 0, len(fresh))
	for _, rec := range fresh {
		if _, ok := existing[rec.Fingerprint]; ok {
			res.SkippedDB++
			metrics.ArticlesSkipped.WithLabelValues(conn.SourceName(), ticker, "database").Inc()
			continue
		}
		toSave = append(toSave, rec)
	}

	if len(toSave) > 0 {
		saved, err := p.articles.SaveArticles(ctx, toSave)
		if err != nil {
			return res, err
		}
		res.Saved = saved
		metrics.ArticlesSaved.WithLabelValues(conn.SourceName(), ticker).Add(float64(saved))
	}

	// Mark everything that reached the database layer, including rows
	// skipped by the unique constraint. Add failures are non-fatal.
	for _, rec := range fresh {
		if err := p.keystore.Add(ctx, rec.Fingerprint, p.dedupeTTL); err != nil {
			p.log.Warnf("Keystore add failed for %s: %v", rec.Fingerprint, err)
		}
	}

	p.log.Infof("Collected %s from %s: fetched=%d saved=%d skipped=%d",
		ticker, conn.SourceName(), res.Fetched, res.Saved, res.SkippedKeystore+res.SkippedDB)
	return res, nil
}
