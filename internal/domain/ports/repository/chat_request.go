package repository

import (
	"context"
	"time"

	"ai-chat-gateway/internal/domain/model"
)

// ChatRequestRepository is the key-value Job Store port: put with TTL, get by id.
// A record absent from the store is indistinguishable from one that expired.
type ChatRequestRepository interface {
	// Save writes the record with the store's configured TTL.
	Save(ctx context.Context, req *model.ChatRequest) error
	// Find returns domain.ErrNotFound when the id is absent or expired.
	Find(ctx context.Context, id string) (*model.ChatRequest, error)
}

// Sweeper is implemented by stores without native per-key expiry. It removes
// terminal records older than the given age, best effort.
type Sweeper interface {
	SweepTerminal(ctx context.Context, olderThan time.Duration) (int, error)
}
