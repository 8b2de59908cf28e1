package pipeline

import (
	"context"
	"time"

	"hermes/internal/adapters/kafka"
	"hermes/internal/domain/insight"
	"hermes/internal/domain/jobrun"
	"hermes/internal/jobs"
	"hermes/internal/metrics"
	"hermes/pkg/logger"
)

// Urgency thresholds. An insight crossing either one is delivered as an
// urgent alert instead of a routine record.
const (
	UrgentAnomalyScore   = 0.7
	UrgentSentimentScore = -0.6
)

// DefaultDeliverBatch bounds one deliver run.
const DefaultDeliverBatch = 50

// EventPublisher is the outbound event stream. *kafka.Producer satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// AlertSender pushes urgent alerts to a human channel.
type AlertSender interface {
	SendUrgent(ctx context.Context, item insight.StoredInsight) error
}

// UrgentInsightEvent is the payload published to the urgent topic.
type UrgentInsightEvent struct {
	InsightID    string    `json:"insight_id"`
	Ticker       string    `json:"ticker"`
	SummaryText  string    `json:"summary_text"`
	Sentiment    float64   `json:"sentiment_score"`
	AnomalyScore float64   `json:"anomaly_score"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// InsightCreatedEvent announces every delivered insight on the created
// topic, urgent or not. Downstream consumers that only care about alerts
// subscribe to the urgent topic instead.
type InsightCreatedEvent struct {
	InsightID    string    `json:"insight_id"`
	Ticker       string    `json:"ticker"`
	SummaryText  string    `json:"summary_text"`
	Sentiment    float64   `json:"sentiment_score"`
	AnomalyScore float64   `json:"anomaly_score"`
	Urgency      string    `json:"urgency"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Deliver drains undelivered insights, routing urgent ones to the event
// stream and alert channel. Publisher and sender may both be nil; routing
// then degrades to marking insights delivered.
type Deliver struct {
	insights  insight.Repository
	publisher EventPublisher
	alerts    AlertSender
	recorder  *jobs.Recorder

	batchSize int
	log       *logger.Logger
}

// DeliverConfig wires the deliver pipeline dependencies.
type DeliverConfig struct {
	Insights  insight.Repository
	Publisher EventPublisher
	Alerts    AlertSender
	Recorder  *jobs.Recorder
	BatchSize int
}

// NewDeliver creates the deliver pipeline.
func NewDeliver(cfg DeliverConfig) *Deliver {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultDeliverBatch
	}
	return &Deliver{
		insights:  cfg.Insights,
		publisher: cfg.Publisher,
		alerts:    cfg.Alerts,
		recorder:  cfg.Recorder,
		batchSize: batch,
		log:       logger.Get().With("component", "deliver_pipeline"),
	}
}

// IsUrgent reports whether a result crosses the alert thresholds.
func IsUrgent(r *insight.AnalysisResult) bool {
	return r.MaxAnomalyScore() >= UrgentAnomalyScore || r.Sentiment <= UrgentSentimentScore
}

// Run delivers one batch of pending insights. An insight whose outbound
// publish fails is left undelivered for the next run; the first such
// error is returned after the whole batch was attempted.
func (p *Deliver) Run(ctx context.Context) (delivered int, retErr error) {
	scope, err := p.recorder.Start(ctx, jobs.StartParams{
		Stage:    jobrun.StageDeliver,
		TaskName: "deliver_insights",
	})
	if err != nil {
		return 0, err
	}
	defer func() { scope.Finish(ctx, retErr) }()

	pending, err := p.insights.ListUndelivered(ctx, p.batchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var firstErr error
	for _, item := range pending {
		if err := p.deliverOne(ctx, item); err != nil {
			p.log.Errorf("Failed to deliver insight %s: %v", item.ID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delivered++
	}

	p.log.Infof("Delivered %d/%d insights", delivered, len(pending))
	return delivered, firstErr
}

func (p *Deliver) deliverOne(ctx context.Context, item insight.StoredInsight) error {
	urgency := "routine"
	if IsUrgent(&item.Result) {
		urgency = "urgent"
	}

	if p.publisher != nil {
		created := InsightCreatedEvent{
			InsightID:    item.ID.String(),
			Ticker:       item.Result.Ticker,
			SummaryText:  item.Result.SummaryText,
			Sentiment:    item.Result.Sentiment,
			AnomalyScore: item.Result.MaxAnomalyScore(),
			Urgency:      urgency,
			GeneratedAt:  item.Result.GeneratedAt,
		}
		if err := p.publisher.Publish(ctx, kafka.TopicInsightsCreated, item.Result.Ticker, created); err != nil {
			metrics.KafkaMessages.WithLabelValues(kafka.TopicInsightsCreated, "error").Inc()
			return err
		}
		metrics.KafkaMessages.WithLabelValues(kafka.TopicInsightsCreated, "success").Inc()
	}

	if urgency == "urgent" {
		if p.publisher != nil {
			event := UrgentInsightEvent{
				InsightID:    item.ID.String(),
				Ticker:       item.Result.Ticker,
				SummaryText:  item.Result.SummaryText,
				Sentiment:    item.Result.Sentiment,
				AnomalyScore: item.Result.MaxAnomalyScore(),
				GeneratedAt:  item.Result.GeneratedAt,
			}
			if err := p.publisher.Publish(ctx, kafka.TopicInsightsUrgent, item.Result.Ticker, event); err != nil {
				metrics.KafkaMessages.WithLabelValues(kafka.TopicInsightsUrgent, "error").Inc()
				return err
			}
			metrics.KafkaMessages.WithLabelValues(kafka.TopicInsightsUrgent, "success").Inc()
		}

		// Alert channel is best-effort; the event stream already carries
		// the insight.
		if p.alerts != nil {
			if err := p.alerts.SendUrgent(ctx, item); err != nil {
				p.log.Warnf("Urgent alert for %s failed: %v", item.Result.Ticker, err)
			}
		}
	}

	if err := p.insights.MarkDelivered(ctx, item.ID); err != nil {
		return err
	}
	metrics.InsightsDelivered.WithLabelValues(item.Result.Ticker, urgency).Inc()
	return nil
}
