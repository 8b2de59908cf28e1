package llm

import "context"

// Message is one chat message in provider-neutral form.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Payload is the provider-neutral request built by the gateway.
type Payload struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int

	// JSONMode asks the provider for a JSON-object response format.
	JSONMode bool
}

// Usage is the token accounting a provider reports for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ProviderResponse is a completed (non-streaming) provider call.
type ProviderResponse struct {
	Model   string
	Content string
	Usage   Usage
}

// ProviderFunc executes one structured completion. Injected into the
// gateway so tests run without network access; a real implementation is
// installed by default.
type ProviderFunc func(ctx context.Context, p Payload) (*ProviderResponse, error)

// ChunkStream is a provider-side stream of completion chunks. Recv
// returns io.EOF when the stream ends. Chunks are normalized by the
// gateway, so implementations may yield whatever shape the transport
// produced: decoded JSON maps, typed StreamChunk values, or raw strings.
type ChunkStream interface {
	Recv() (interface{}, error)
	Close() error
}

// StreamProviderFunc opens one streaming completion. Each invocation
// starts a fresh stream.
type StreamProviderFunc func(ctx context.Context, p Payload) (ChunkStream, error)

// StreamChunk is the typed chunk shape.
type StreamChunk struct {
	Choices []StreamChoice
}

// StreamChoice carries the incremental delta of one choice.
type StreamChoice struct {
	Delta Delta
}

// Delta is the incremental message content of a streaming chunk.
type Delta struct {
	Content string
}

// extractContent normalizes a provider chunk to its text fragment.
// Both map-shaped (decoded JSON) and struct-shaped chunks are supported;
// anything else yields an empty fragment.
func extractContent(chunk interface{}) string {
	switch c := chunk.(type) {
	case string:
		return c
	case StreamChunk:
		if len(c.Choices) > 0 {
			return c.Choices[0].Delta.Content
		}
	case *StreamChunk:
		if c != nil && len(c.Choices) > 0 {
			return c.Choices[0].Delta.Content
		}
	case map[string]interface{}:
		choices, ok := c["choices"].([]interface{})
		if !ok || len(choices) == 0 {
			return ""
		}
		first, ok := choices[0].(map[string]interface{})
		if !ok {
			return ""
		}
		delta, ok := first["delta"].(map[string]interface{})
		if !ok {
			return ""
		}
		if content, ok := delta["content"].(string); ok {
			return content
		}
	}
	return ""
}
