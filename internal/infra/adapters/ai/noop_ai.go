package ai

import (
	"context"
	"strings"
	"time"

	"ai-chat-gateway/internal/domain/ports/adapter"
)

var _ adapter.CompletionClient = (*NoopAdapter)(nil)

// NoopAdapter implements adapter.CompletionClient for local/dev runs.
// It echoes a canned reply instead of calling a real completion API.
type NoopAdapter struct{}

func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{}
}

func (a *NoopAdapter) Complete(ctx context.Context, messages []adapter.Message) (string, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return "This is a noop completion response.", nil
}

func (a *NoopAdapter) CompleteStream(ctx context.Context, messages []adapter.Message, emit func(string) error) error {
	reply, err := a.Complete(ctx, messages)
	if err != nil {
		return err
	}
	for _, word := range strings.SplitAfter(reply, " ") {
		select {
		case <-time.After(20 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := emit(word); err != nil {
			return err
		}
	}
	return nil
}
