package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// CompletionClient is the port for the upstream chat-completion call.
type CompletionClient interface {
	// Complete issues one non-streamed request and returns the full reply text.
	Complete(ctx context.Context, messages []Message) (string, error)

	// CompleteStream issues a streamed request and calls emit for every text
	// fragment as it arrives. A non-nil error from emit aborts the stream.
	CompleteStream(ctx context.Context, messages []Message, emit func(fragment string) error) error
}
