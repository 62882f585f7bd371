package ai

import (
	"context"

	"ai-chat-gateway/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.CompletionClient = (*limitedClient)(nil)

type limitedClient struct {
	inner adapter.CompletionClient
	sem   chan struct{}
}

// NewLimitedClient caps the number of concurrent upstream calls.
func NewLimitedClient(inner adapter.CompletionClient, maxConcurrent int) adapter.CompletionClient {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedClient{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedClient) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedClient) Complete(ctx context.Context, messages []adapter.Message) (string, error) {
	if err := l.acquire(ctx); err != nil {
		return "", err
	}
	defer func() { <-l.sem }()
	return l.inner.Complete(ctx, messages)
}

func (l *limitedClient) CompleteStream(ctx context.Context, messages []adapter.Message, emit func(string) error) error {
	if err := l.acquire(ctx); err != nil {
		return err
	}
	defer func() { <-l.sem }()
	return l.inner.CompleteStream(ctx, messages, emit)
}
