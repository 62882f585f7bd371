package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"ai-chat-gateway/internal/domain"
	"ai-chat-gateway/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.CompletionClient = (*DeepSeekAdapter)(nil)

// DeepSeekAdapter implements adapter.CompletionClient against DeepSeek's
// OpenAI-compatible chat completions endpoint.
// Base URL defaults to https://api.deepseek.com (configurable).
// Chat completions path is the same as OpenAI: /chat/completions
// Authorization: Bearer <API_KEY>
type DeepSeekAdapter struct {
	apiKey      string
	base        string // e.g., https://api.deepseek.com
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func NewDeepSeekAdapter(apiKey, base, model string, maxTokens int, temperature float64, timeout time.Duration) (*DeepSeekAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("deepseek api key empty")
	}
	if base == "" {
		base = "https://api.deepseek.com"
	}
	if model == "" {
		model = "deepseek-chat"
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &DeepSeekAdapter{
		apiKey:      apiKey,
		base:        strings.TrimRight(base, "/"),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		// No retries; fail fast and let the record carry the reason.
		client: &http.Client{Timeout: timeout},
	}, nil
}

type completionRequest struct {
	Model       string            `json:"model"`
	Messages    []adapter.Message `json:"messages"`
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Stream      bool              `json:"stream,omitempty"`
}

func (d *DeepSeekAdapter) Complete(ctx context.Context, messages []adapter.Message) (string, error) {
	resp, err := d.post(ctx, completionRequest{
		Model:       d.model,
		Messages:    messages,
		Temperature: d.temperature,
		MaxTokens:   d.maxTokens,
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload struct {
		Choices []struct {
			Message adapter.Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("deepseek decode: %w", domain.ErrMalformedResponse)
	}
	for _, c := range payload.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", fmt.Errorf("deepseek no choice content: %w", domain.ErrMalformedResponse)
}

func (d *DeepSeekAdapter) CompleteStream(ctx context.Context, messages []adapter.Message, emit func(string) error) error {
	resp, err := d.post(ctx, completionRequest{
		Model:       d.model,
		Messages:    messages,
		Temperature: d.temperature,
		MaxTokens:   d.maxTokens,
		Stream:      true,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Server-sent events: one "data: {...}" line per chunk, "data: [DONE]" last.
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return nil
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content == "" {
				continue
			}
			if err := emit(c.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return classifyTransport(err)
	}
	return nil
}

func (d *DeepSeekAdapter) post(ctx context.Context, body completionRequest) (*http.Response, error) {
	b, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.base+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, classifyStatus("deepseek", resp.StatusCode)
	}
	return resp, nil
}

func classifyStatus(provider string, code int) error {
	switch code {
	case http.StatusPaymentRequired:
		return fmt.Errorf("%s http %d: %w", provider, code, domain.ErrInsufficientQuota)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s http %d: %w", provider, code, domain.ErrRateLimited)
	default:
		return fmt.Errorf("%s http %d", provider, code)
	}
}

func classifyTransport(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%v: %w", err, domain.ErrUpstreamTimeout)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%v: %w", err, domain.ErrUpstreamTimeout)
	}
	return err
}
