package usage

import "time"

// Log is a single LLM usage event, written to the analytics store after
// every gateway call that returned usage metadata.
type Log struct {
	Timestamp time.Time `ch:"timestamp"`
	EventID   string    `ch:"event_id"`

	Ticker   string `ch:"ticker"`
	TaskName string `ch:"task_name"`
	TraceID  string `ch:"trace_id"`

	Provider string `ch:"provider"`
	ModelID  string `ch:"model_id"`

	PromptTokens     uint32 `ch:"prompt_tokens"`
	CompletionTokens uint32 `ch:"completion_tokens"`
	TotalTokens      uint32 `ch:"total_tokens"`

	CostUSD float64 `ch:"cost_usd"`

	LatencyMs uint32 `ch:"latency_ms"`
	Attempts  uint8  `ch:"attempts"`

	CreatedAt time.Time `ch:"created_at"`
}
