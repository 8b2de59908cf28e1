package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	WorkerLastRun = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hermes_worker_last_run_timestamp",
			Help: "Unix timestamp of last worker execution",
		},
		[]string{"worker"},
	)

	// Collector metrics
	ArticlesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_articles_fetched_total",
			Help: "Total articles fetched from sources",
		},
		[]string{"source", "ticker"},
	)

	ArticlesSaved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_articles_saved_total",
			Help: "Total new articles persisted after dedupe",
		},
		[]string{"source", "ticker"},
	)

	ArticlesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_articles_skipped_total",
			Help: "Total articles skipped as duplicates",
		},
		[]string{"source", "ticker", "reason"}, // reason: keystore|database
	)

	SourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_source_errors_total",
			Help: "Total source fetch errors by class",
		},
		[]string{"source", "class"}, // class: transient|permanent
	)

	// LLM gateway metrics
	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_llm_calls_total",
			Help: "Total number of LLM gateway calls",
		},
		[]string{"model", "mode", "status"}, // mode: structured|stream
	)

	LLMCost = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_llm_cost_usd",
			Help: "Total LLM cost in USD",
		},
		[]string{"model"},
	)

	LLMLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_llm_latency_seconds",
			Help:    "LLM call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"model", "mode"},
	)

	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_llm_tokens_total",
			Help: "Total tokens used by LLM calls",
		},
		[]string{"model", "type"}, // type: prompt|completion
	)

	LLMCostCapRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_llm_cost_cap_rejections_total",
			Help: "Total calls aborted by the cost cap",
		},
		[]string{"model", "mode"},
	)

	// Delivery metrics
	InsightsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_insights_delivered_total",
			Help: "Total insights handled by the deliver stage",
		},
		[]string{"ticker", "urgency"}, // urgency: urgent|routine
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hermes_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"database", "operation"},
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hermes_kafka_messages_total",
			Help: "Total Kafka messages produced",
		},
		[]string{"topic", "status"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	// Worker metrics
	prometheus.MustRegister(WorkerExecutions)
	prometheus.MustRegister(WorkerDuration)
	prometheus.MustRegister(WorkerLastRun)

	// Collector metrics
	prometheus.MustRegister(ArticlesFetched)
	prometheus.MustRegister(ArticlesSaved)
	prometheus.MustRegister(ArticlesSkipped)
	prometheus.MustRegister(SourceErrors)

	// LLM gateway metrics
	prometheus.MustRegister(LLMCalls)
	prometheus.MustRegister(LLMCost)
	prometheus.MustRegister(LLMLatency)
	prometheus.MustRegister(LLMTokens)
	prometheus.MustRegister(LLMCostCapRejections)

	// Delivery metrics
	prometheus.MustRegister(InsightsDelivered)

	// Database metrics
	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(DBQueryDuration)

	// System metrics
	prometheus.MustRegister(KafkaMessages)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	WorkerExecutions.WithLabelValues(worker, status).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
	WorkerLastRun.WithLabelValues(worker).SetToCurrentTime()
}

// RecordLLMCall records one gateway call with its usage numbers
func RecordLLMCall(model, mode string, latency time.Duration, cost float64, promptTokens, completionTokens int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	LLMCalls.WithLabelValues(model, mode, status).Inc()
	LLMLatency.WithLabelValues(model, mode).Observe(latency.Seconds())

	if cost > 0 {
		LLMCost.WithLabelValues(model).Add(cost)
	}
	if promptTokens > 0 {
		LLMTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordDBQuery records a database query
func RecordDBQuery(database, operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	DBQueries.WithLabelValues(database, operation, status).Inc()
	DBQueryDuration.WithLabelValues(database, operation).Observe(duration.Seconds())
}
