package memory

import (
	"context"
	"sync"
	"time"

	"ai-chat-gateway/internal/domain"
	"ai-chat-gateway/internal/domain/model"
	"ai-chat-gateway/internal/domain/ports/repository"
)

var (
	_ repository.ChatRequestRepository = (*RequestRepo)(nil)
	_ repository.Sweeper               = (*RequestRepo)(nil)
)

// RequestRepo keeps chat request records in a process-local map.
// Only valid for single-instance deployments; any horizontally scaled setup
// must use the Redis store so every instance sees the same records.
type RequestRepo struct {
	mu  sync.Mutex
	ttl time.Duration
	now func() time.Time

	records map[string]entry
}

type entry struct {
	req       model.ChatRequest
	expiresAt time.Time
}

func NewRequestRepo(ttl time.Duration) *RequestRepo {
	return &RequestRepo{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]entry),
	}
}

func (r *RequestRepo) Save(ctx context.Context, req *model.ChatRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[req.ID] = entry{req: *req, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *RequestRepo) Find(ctx context.Context, id string) (*model.ChatRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.now().After(e.expiresAt) {
		delete(r.records, id)
		return nil, domain.ErrNotFound
	}
	cp := e.req
	return &cp, nil
}

// SweepTerminal drops expired records and terminal records older than the
// given age. Pending records are left alone until their TTL passes.
func (r *RequestRepo) SweepTerminal(ctx context.Context, olderThan time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	cutoff := now.Add(-olderThan)
	n := 0
	for id, e := range r.records {
		if now.After(e.expiresAt) || (e.req.Terminal() && e.req.Timestamp.Before(cutoff)) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

// Len reports the number of stored records. Test helper.
func (r *RequestRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
