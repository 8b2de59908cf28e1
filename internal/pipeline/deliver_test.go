package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/adapters/kafka"
	"hermes/internal/domain/insight"
	"hermes/internal/domain/jobrun"
	"hermes/internal/jobs"
	"hermes/pkg/errors"
)

func storedInsight(sentiment, anomalyScore float64) insight.StoredInsight {
	result := insight.AnalysisResult{
		Ticker:      "AAPL",
		SummaryText: "summary",
		Sentiment:   sentiment,
		GeneratedAt: time.Now().UTC(),
		Model:       "gpt-4o-mini",
	}
	if anomalyScore > 0 {
		result.Anomalies = []insight.AnomalyItem{
			{Label: "event", Description: "something unusual", Score: anomalyScore},
		}
	}
	return insight.StoredInsight{ID: uuid.New(), Result: result}
}

func TestIsUrgent_Thresholds(t *testing.T) {
	cases := []struct {
		name      string
		sentiment float64
		anomaly   float64
		urgent    bool
	}{
		{"high anomaly", 0.0, 0.7, true},
		{"below anomaly threshold", 0.0, 0.69, false},
		{"very negative sentiment", -0.6, 0.0, true},
		{"mildly negative sentiment", -0.59, 0.0, false},
		{"both calm", 0.2, 0.1, false},
		{"both hot", -0.9, 0.95, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := storedInsight(tc.sentiment, tc.anomaly)
			assert.Equal(t, tc.urgent, IsUrgent(&item.Result))
		})
	}
}

func TestDeliver_RoutesUrgentAndRoutine(t *testing.T) {
	jobRuns := &fakeJobRuns{}
	urgent := storedInsight(-0.8, 0.0)
	routine := storedInsight(0.3, 0.1)
	insights := &fakeInsights{pending: []insight.StoredInsight{urgent, routine}}
	pub := &fakePublisher{}
	alerts := &fakeAlerts{}

	p := NewDeliver(DeliverConfig{
		Insights:  insights,
		Publisher: pub,
		Alerts:    alerts,
		Recorder:  jobs.NewRecorder(jobRuns),
	})

	delivered, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	// Both insights land on the created topic; only the urgent one is
	// also published to the urgent topic and alerted.
	require.Len(t, pub.events, 3)

	var createdIDs []string
	var urgentIDs []string
	for _, e := range pub.events {
		assert.Equal(t, "AAPL", e.key)
		switch e.topic {
		case kafka.TopicInsightsCreated:
			createdIDs = append(createdIDs, e.event.(InsightCreatedEvent).InsightID)
		case kafka.TopicInsightsUrgent:
			urgentIDs = append(urgentIDs, e.event.(UrgentInsightEvent).InsightID)
		default:
			t.Fatalf("unexpected topic %s", e.topic)
		}
	}
	assert.ElementsMatch(t, []string{urgent.ID.String(), routine.ID.String()}, createdIDs)
	assert.Equal(t, []string{urgent.ID.String()}, urgentIDs)

	require.Len(t, alerts.sent, 1)
	assert.Equal(t, urgent.ID, alerts.sent[0].ID)

	assert.ElementsMatch(t, []uuid.UUID{urgent.ID, routine.ID}, insights.delivered)
	assert.Equal(t, jobrun.StatusSucceeded, jobRuns.lastFinished().Status)
}

func TestDeliver_PublishFailureLeavesUndelivered(t *testing.T) {
	urgent := storedInsight(-0.9, 0.0)
	routine := storedInsight(0.0, 0.0)
	insights := &fakeInsights{pending: []insight.StoredInsight{urgent, routine}}
	pub := &fakePublisher{err: errors.New("broker down")}

	p := NewDeliver(DeliverConfig{
		Insights:  insights,
		Publisher: pub,
		Recorder:  jobs.NewRecorder(&fakeJobRuns{}),
	})

	delivered, err := p.Run(context.Background())
	require.Error(t, err)

	// Nothing reached the event stream, so both stay pending for the
	// next run.
	assert.Equal(t, 0, delivered)
	assert.Empty(t, insights.delivered)
}

func TestDeliver_AlertFailureIsBestEffort(t *testing.T) {
	urgent := storedInsight(-0.9, 0.0)
	insights := &fakeInsights{pending: []insight.StoredInsight{urgent}}

	p := NewDeliver(DeliverConfig{
		Insights:  insights,
		Publisher: &fakePublisher{},
		Alerts:    &fakeAlerts{err: errors.New("telegram down")},
		Recorder:  jobs.NewRecorder(&fakeJobRuns{}),
	})

	delivered, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, []uuid.UUID{urgent.ID}, insights.delivered)
}

func TestDeliver_EmptyQueueIsNoop(t *testing.T) {
	jobRuns := &fakeJobRuns{}
	p := NewDeliver(DeliverConfig{
		Insights: &fakeInsights{},
		Recorder: jobs.NewRecorder(jobRuns),
	})

	delivered, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
	assert.Equal(t, jobrun.StatusSucceeded, jobRuns.lastFinished().Status)
}

func TestDeliver_NilPublisherStillMarksDelivered(t *testing.T) {
	urgent := storedInsight(-0.9, 0.0)
	insights := &fakeInsights{pending: []insight.StoredInsight{urgent}}

	p := NewDeliver(DeliverConfig{
		Insights: insights,
		Recorder: jobs.NewRecorder(&fakeJobRuns{}),
	})

	delivered, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Len(t, insights.delivered, 1)
}
