package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"ai-chat-gateway/internal/domain"
	"ai-chat-gateway/internal/domain/model"
	"ai-chat-gateway/internal/domain/ports/repository"
)

var _ repository.ChatRequestRepository = (*RequestRepo)(nil)

// RequestRepo persists chat request records in Redis with a fixed TTL.
// Expiry is handled by Redis itself; an expired record simply reads as absent.
type RequestRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewRequestRepo(client RedisClient, ttl time.Duration) *RequestRepo {
	return &RequestRepo{client: client, ttl: ttl}
}

func requestKey(id string) string { return "chat:" + id }

func (r *RequestRepo) Save(ctx context.Context, req *model.ChatRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	// Terminal writes refresh the TTL; the record stays pollable for a full
	// window after completion.
	return r.client.Set(ctx, requestKey(req.ID), data, r.ttl)
}

func (r *RequestRepo) Find(ctx context.Context, id string) (*model.ChatRequest, error) {
	data, err := r.client.Get(ctx, requestKey(id))
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var req model.ChatRequest
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return nil, err
	}
	return &req, nil
}
