// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"ai-chat-gateway/internal/domain"
	"ai-chat-gateway/internal/domain/model"
	"ai-chat-gateway/internal/domain/ports/adapter"
	"ai-chat-gateway/internal/domain/ports/repository"
)

// Dispatcher schedules exactly one background processing task for a request id.
// The task runs on the process lifetime context, not the caller's.
type Dispatcher interface {
	Dispatch(id string) error
}

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatUseCase interface {
	// Submit validates the message, writes a pending record and schedules
	// background processing without waiting for it.
	Submit(ctx context.Context, message string) (*model.ChatRequest, error)
	// Status returns the current record; read-only.
	Status(ctx context.Context, id string) (*model.ChatRequest, error)
	// Send issues one blocking completion call (synchronous mode).
	Send(ctx context.Context, message string) (string, error)
	// Stream relays completion fragments to emit as they arrive (streaming mode).
	Stream(ctx context.Context, message string, emit func(fragment string) error) error
}

type chatUC struct {
	requests     repository.ChatRequestRepository
	ai           adapter.CompletionClient
	dispatcher   Dispatcher
	systemPrompt string
	maxChars     int
	log          *zerolog.Logger
}

func NewChatUseCase(
	requests repository.ChatRequestRepository,
	ai adapter.CompletionClient,
	dispatcher Dispatcher,
	systemPrompt string,
	maxChars int,
	log *zerolog.Logger,
) *chatUC {
	if maxChars <= 0 {
		maxChars = 200
	}
	return &chatUC{
		requests:     requests,
		ai:           ai,
		dispatcher:   dispatcher,
		systemPrompt: systemPrompt,
		maxChars:     maxChars,
		log:          log,
	}
}

func (c *chatUC) validate(message string) error {
	if message == "" {
		return domain.ErrMessageRequired
	}
	if utf8.RuneCountInString(message) > c.maxChars {
		return domain.ErrMessageTooLong
	}
	return nil
}

// Messages builds the fixed system instruction plus the user message.
func (c *chatUC) messages(userMessage string) []adapter.Message {
	return []adapter.Message{
		{Role: "system", Content: c.systemPrompt},
		{Role: "user", Content: userMessage},
	}
}

func (c *chatUC) Submit(ctx context.Context, message string) (*model.ChatRequest, error) {
	if err := c.validate(message); err != nil {
		return nil, err
	}

	req := model.NewChatRequest(message)
	if err := c.requests.Save(ctx, req); err != nil {
		return nil, fmt.Errorf("save pending record: %w", err)
	}

	if err := c.dispatcher.Dispatch(req.ID); err != nil {
		// The pending record is already visible to pollers; fail it so they
		// don't wait out their whole budget.
		c.log.Error().Err(err).Str("request_id", req.ID).Msg("dispatch failed")
		_ = req.Fail("Error processing your request", 0)
		_ = c.requests.Save(ctx, req)
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	return req, nil
}

func (c *chatUC) Status(ctx context.Context, id string) (*model.ChatRequest, error) {
	if id == "" {
		return nil, domain.ErrInvalidArgument
	}
	return c.requests.Find(ctx, id)
}

func (c *chatUC) Send(ctx context.Context, message string) (string, error) {
	if err := c.validate(message); err != nil {
		return "", err
	}
	return c.ai.Complete(ctx, c.messages(message))
}

func (c *chatUC) Stream(ctx context.Context, message string, emit func(string) error) error {
	if err := c.validate(message); err != nil {
		return err
	}
	return c.ai.CompleteStream(ctx, c.messages(message), emit)
}
