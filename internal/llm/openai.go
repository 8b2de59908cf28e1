package llm

import (
	"context"
	"io"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"github.com/openai/openai-go/v3/shared"

	"hermes/pkg/errors"
)

// newOpenAIProvider builds the default structured completion provider on
// the official OpenAI SDK.
func newOpenAIProvider(apiKey string) ProviderFunc {
	client := openai.NewClient(option.WithAPIKey(apiKey))

	return func(ctx context.Context, p Payload) (*ProviderResponse, error) {
		if apiKey == "" {
			return nil, Permanent(errors.Wrap(errors.ErrMissingCredentials, "openai API key not configured"))
		}

		resp, err := client.Chat.Completions.New(ctx, buildOpenAIParams(p))
		if err != nil {
			return nil, classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return nil, Transient(errors.New("openai response has no choices"))
		}

		return &ProviderResponse{
			Model:   resp.Model,
			Content: resp.Choices[0].Message.Content,
			Usage: Usage{
				PromptTokens:     int(resp.Usage.PromptTokens),
				CompletionTokens: int(resp.Usage.CompletionTokens),
			},
		}, nil
	}
}

// newOpenAIStreamProvider builds the default streaming provider.
func newOpenAIStreamProvider(apiKey string) StreamProviderFunc {
	client := openai.NewClient(option.WithAPIKey(apiKey))

	return func(ctx context.Context, p Payload) (ChunkStream, error) {
		if apiKey == "" {
			return nil, Permanent(errors.Wrap(errors.ErrMissingCredentials, "openai API key not configured"))
		}
		stream := client.Chat.Completions.NewStreaming(ctx, buildOpenAIParams(p))
		return &openaiChunkStream{stream: stream}, nil
	}
}

func buildOpenAIParams(p Payload) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(p.Messages))
	for _, m := range p.Messages {
		switch m.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.Model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(p.MaxTokens)),
		Temperature: openai.Float(p.Temperature),
	}
	if p.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

// openaiChunkStream adapts the SDK's SSE stream to ChunkStream.
type openaiChunkStream struct {
	stream *ssestream.Stream[openai.ChatCompletionChunk]
}

func (s *openaiChunkStream) Recv() (interface{}, error) {
	if s.stream.Next() {
		cur := s.stream.Current()
		chunk := StreamChunk{Choices: make([]StreamChoice, 0, len(cur.Choices))}
		for _, choice := range cur.Choices {
			chunk.Choices = append(chunk.Choices, StreamChoice{
				Delta: Delta{Content: choice.Delta.Content},
			})
		}
		return chunk, nil
	}
	if err := s.stream.Err(); err != nil {
		return nil, classifyOpenAIError(err)
	}
	return nil, io.EOF
}

func (s *openaiChunkStream) Close() error {
	return s.stream.Close()
}

// classifyOpenAIError maps SDK errors onto the gateway taxonomy:
// 429 and 5xx retryable, other API statuses permanent, transport
// failures retryable.
func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return Transient(errors.Wrap(errors.ErrRateLimitExceeded, apiErr.Error()))
		case apiErr.StatusCode >= 500:
			return Transient(err)
		default:
			return Permanent(err)
		}
	}
	return Transient(err)
}
