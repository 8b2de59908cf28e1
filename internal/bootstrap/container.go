package bootstrap

import (
	"context"
	"net/http"

	chclient "hermes/internal/adapters/clickhouse"
	"hermes/internal/adapters/config"
	"hermes/internal/adapters/errors/noop"
	"hermes/internal/adapters/errors/sentry"
	"hermes/internal/adapters/kafka"
	pgclient "hermes/internal/adapters/postgres"
	redisclient "hermes/internal/adapters/redis"
	"hermes/internal/connector"
	"hermes/internal/dedupe"
	"hermes/internal/jobs"
	"hermes/internal/llm"
	"hermes/internal/metrics"
	"hermes/internal/notify"
	"hermes/internal/pipeline"
	chrepo "hermes/internal/repository/clickhouse"
	pgrepo "hermes/internal/repository/postgres"
	"hermes/internal/workers"
	"hermes/internal/workers/news"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

// Container holds all application dependencies in initialization order.
type Container struct {
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure
	PG       *pgclient.Client
	CH       *chclient.Client
	Redis    *redisclient.Client
	Producer *kafka.Producer

	// Repositories
	Articles *pgrepo.ArticleRepository
	Insights *pgrepo.InsightRepository
	JobRuns  *pgrepo.JobRunRepository
	Usage    *chrepo.UsageRepository

	// Core components
	Gateway  *llm.Gateway
	Recorder *jobs.Recorder
	Keystore dedupe.KeyStore

	// Pipelines
	Collect *pipeline.Collect
	Analyze *pipeline.Analyze
	Deliver *pipeline.Deliver

	// Background processing
	Scheduler *workers.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
}

// New builds the full dependency graph from configuration. Optional
// backends (ClickHouse, Redis, Kafka, Telegram) are skipped when not
// configured; the pipelines degrade accordingly.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.Log = logger.Get()

	c.ErrorTracker = initErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	if err := c.initInfrastructure(); err != nil {
		return nil, err
	}
	c.initRepositories()
	c.initCore()
	c.initPipelines()
	c.initWorkers()

	return c, nil
}

func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

func (c *Container) initInfrastructure() error {
	pg, err := pgclient.NewClient(c.Config.Postgres)
	if err != nil {
		return errors.Wrap(err, "connect postgres")
	}
	c.PG = pg

	if c.Config.ClickHouse.Enabled() {
		ch, err := chclient.NewClient(c.Config.ClickHouse)
		if err != nil {
			return errors.Wrap(err, "connect clickhouse")
		}
		c.CH = ch
	} else {
		c.Log.Info("ClickHouse not configured, usage logging disabled")
	}

	if c.Config.Redis.Enabled() {
		rdb, err := redisclient.NewClient(c.Config.Redis)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		c.Redis = rdb
	} else {
		c.Log.Info("Redis not configured, using in-memory dedupe keystore")
	}

	if c.Config.Kafka.Enabled() {
		c.Producer = kafka.NewProducer(kafka.ProducerConfig{Brokers: c.Config.Kafka.Brokers})
	} else {
		c.Log.Info("Kafka not configured, urgent insights stay local")
	}

	return nil
}

func (c *Container) initRepositories() {
	db := c.PG.DB()
	c.Articles = pgrepo.NewArticleRepository(db)
	c.Insights = pgrepo.NewInsightRepository(db)
	c.JobRuns = pgrepo.NewJobRunRepository(db)

	if c.CH != nil {
		c.Usage = chrepo.NewUsageRepository(c.CH.Conn())
		c.Usage.Start(c.ctx)
	}
}

func (c *Container) initCore() {
	if c.Producer != nil {
		c.Recorder = jobs.NewRecorderWithEvents(c.JobRuns, c.Producer)
	} else {
		c.Recorder = jobs.NewRecorder(c.JobRuns)
	}

	if c.Redis != nil {
		c.Keystore = dedupe.NewRedisKeyStore(c.Redis.Client())
	} else {
		c.Keystore = dedupe.NewMemoryKeyStore()
	}

	c.Gateway = llm.NewGateway(llm.Config{
		APIKey:           c.Config.LLM.APIKey,
		Model:            c.Config.LLM.Model,
		MaxTokens:        c.Config.LLM.MaxTokens,
		Temperature:      c.Config.LLM.Temperature,
		CostCapUSD:       c.Config.LLM.CostCapUSD,
		RequestTimeout:   c.Config.LLM.RequestTimeout,
		RetryMaxAttempts: c.Config.LLM.RetryMaxAttempts,
		RatePerMinute:    c.Config.LLM.RatePerMinute,
	})
}

func (c *Container) initPipelines() {
	connectors := []*connector.Connector{
		connector.New(connector.NewNewsAPISource(c.Config.NewsAPI)),
	}
	for _, feed := range c.Config.RSS.Feeds {
		connectors = append(connectors, connector.New(connector.NewRSSSource(feed, c.Config.RSS.Timeout)))
	}

	c.Collect = pipeline.NewCollect(pipeline.CollectConfig{
		Connectors: connectors,
		Articles:   c.Articles,
		Keystore:   c.Keystore,
		Recorder:   c.Recorder,
		DedupeTTL:  c.Config.Workers.DedupeTTL,
	})

	analyzeCfg := pipeline.AnalyzeConfig{
		Articles:        c.Articles,
		Insights:        c.Insights,
		Gateway:         c.Gateway,
		Recorder:        c.Recorder,
		Locale:          c.Config.App.Locale,
		MaxChars:        c.Config.LLM.MaxChars,
		Lookback:        c.Config.Workers.AnalyzeLookback,
		DailyCostCapUSD: c.Config.LLM.DailyCostCapUSD,
	}
	if c.Usage != nil {
		analyzeCfg.Usage = c.Usage
	}
	c.Analyze = pipeline.NewAnalyze(analyzeCfg)

	deliverCfg := pipeline.DeliverConfig{
		Insights: c.Insights,
		Recorder: c.Recorder,
	}
	if c.Producer != nil {
		deliverCfg.Publisher = c.Producer
	}
	if c.Config.Telegram.Enabled() {
		notifier, err := notify.NewNotifier(notify.Config{
			Token:  c.Config.Telegram.BotToken,
			ChatID: c.Config.Telegram.ChatID,
		})
		if err != nil {
			c.Log.Warnf("Failed to initialize Telegram notifier: %v", err)
		} else {
			deliverCfg.Alerts = notifier
		}
	}
	c.Deliver = pipeline.NewDeliver(deliverCfg)
}

func (c *Container) initWorkers() {
	var locker news.Locker
	if c.Redis != nil {
		locker = c.Redis
	}

	wcfg := c.Config.Workers
	c.Scheduler = workers.NewScheduler()
	c.Scheduler.RegisterWorker(news.NewCollectorWorker(c.Collect, wcfg.Tickers, wcfg.CollectInterval, locker, true))
	c.Scheduler.RegisterWorker(news.NewAnalyzerWorker(c.Analyze, wcfg.Tickers, wcfg.AnalyzeInterval, locker, c.Config.LLM.APIKey != ""))
	c.Scheduler.RegisterWorker(news.NewDelivererWorker(c.Deliver, wcfg.DeliverInterval, locker, true))
}

// Start launches background processing and the metrics endpoint.
func (c *Container) Start() error {
	metrics.Init()
	go func() {
		http.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(":9090", nil); err != nil && err != http.ErrServerClosed {
			c.Log.Warnf("Metrics endpoint stopped: %v", err)
		}
	}()

	return c.Scheduler.Start(c.ctx)
}
