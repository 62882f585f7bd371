package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"ai-chat-gateway/internal/domain"
	"ai-chat-gateway/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.CompletionClient = (*OpenAIAdapter)(nil)

// OpenAIAdapter implements adapter.CompletionClient through the official SDK.
// A custom base URL points it at any OpenAI-compatible gateway.
type OpenAIAdapter struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

func NewOpenAIAdapter(apiKey, base, model string, maxTokens int, temperature float64, timeout time.Duration) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(timeout),
	}
	if base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &OpenAIAdapter{
		client:      openai.NewClient(opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

func (o *OpenAIAdapter) params(messages []adapter.Message) openai.ChatCompletionNewParams {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case "assistant":
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    msgs,
		MaxTokens:   openai.Int(int64(o.maxTokens)),
		Temperature: openai.Float(o.temperature),
	}
}

func (o *OpenAIAdapter) Complete(ctx context.Context, messages []adapter.Message) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, o.params(messages))
	if err != nil {
		return "", classifySDK(err)
	}
	for _, c := range resp.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", fmt.Errorf("openai no choice content: %w", domain.ErrMalformedResponse)
}

func (o *OpenAIAdapter) CompleteStream(ctx context.Context, messages []adapter.Message, emit func(string) error) error {
	stream := o.client.Chat.Completions.NewStreaming(ctx, o.params(messages))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		for _, c := range chunk.Choices {
			if c.Delta.Content == "" {
				continue
			}
			if err := emit(c.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return classifySDK(err)
	}
	return nil
}

func classifySDK(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return classifyStatus("openai", apierr.StatusCode)
	}
	return classifyTransport(err)
}
