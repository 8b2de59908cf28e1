package kafka

// Topic definitions for Kafka event streaming
const (
	// Insight events
	TopicInsightsUrgent  = "insights.urgent"
	TopicInsightsCreated = "insights.created"

	// Pipeline events
	TopicPipelineFailed = "pipeline.failed"
)
