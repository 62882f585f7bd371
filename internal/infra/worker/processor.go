package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-gateway/internal/domain"
	"ai-chat-gateway/internal/domain/ports/adapter"
	"ai-chat-gateway/internal/domain/ports/repository"
	"ai-chat-gateway/internal/infra/metrics"
)

// Processor runs the background half of an async submission: one completion
// call per request id, one terminal write, no retries.
type Processor struct {
	requests     repository.ChatRequestRepository
	ai           adapter.CompletionClient
	pool         *Pool
	provider     string
	systemPrompt string
	deadline     time.Duration
	log          *zerolog.Logger
}

func NewProcessor(
	requests repository.ChatRequestRepository,
	ai adapter.CompletionClient,
	pool *Pool,
	provider string,
	systemPrompt string,
	deadline time.Duration,
	log *zerolog.Logger,
) *Processor {
	plog := log.With().Str("component", "Processor").Logger()
	return &Processor{
		requests:     requests,
		ai:           ai,
		pool:         pool,
		provider:     provider,
		systemPrompt: systemPrompt,
		deadline:     deadline,
		log:          &plog,
	}
}

// Dispatch schedules processing for the given id. Called exactly once per
// submission, right after the pending record is written.
func (p *Processor) Dispatch(id string) error {
	return p.pool.Submit(func(ctx context.Context) error {
		p.process(ctx, id)
		return nil
	})
}

func (p *Processor) process(ctx context.Context, id string) {
	log := p.log.With().Str("request_id", id).Logger()

	req, err := p.requests.Find(ctx, id)
	if err != nil {
		// Record gone before we got to it (expired or never written). Non-fatal.
		log.Warn().Err(err).Msg("record missing before processing")
		return
	}
	if req.Terminal() {
		// This processor is only authoritative for pending records.
		log.Warn().Str("status", string(req.Status)).Msg("record already terminal, skipping")
		return
	}

	log.Info().Msg("processing chat request")
	start := time.Now()

	// The internal deadline is strictly shorter than the adapter's transport
	// timeout and cancels the underlying connection when it fires, so a hung
	// upstream call always ends in a deterministic error record.
	cctx, cancel := context.WithTimeout(ctx, p.deadline)
	defer cancel()

	messages := []adapter.Message{
		{Role: "system", Content: p.systemPrompt},
		{Role: "user", Content: req.Message},
	}
	result, err := p.ai.Complete(cctx, messages)
	elapsed := time.Since(start)
	metrics.ObserveAICall(p.provider, int(elapsed.Milliseconds()), err == nil)

	if err != nil {
		if errors.Is(err, domain.ErrUpstreamTimeout) || errors.Is(err, context.DeadlineExceeded) {
			metrics.IncTimeout()
		}
		log.Error().Err(err).Dur("duration", elapsed).Msg("chat request failed")
		_ = req.Fail(reasonFor(err), elapsed)
		metrics.IncChatJob(string(req.Status))
	} else {
		_ = req.Complete(result, elapsed)
		metrics.IncChatJob(string(req.Status))
	}

	// The terminal write must land even when the job context is being torn
	// down, so it runs on its own short-lived context.
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if err := p.requests.Save(sctx, req); err != nil {
		log.Error().Err(err).Msg("failed to save terminal record")
		return
	}
	log.Info().Str("status", string(req.Status)).Dur("duration", elapsed).Msg("chat request finished")
}

// reasonFor maps a classified upstream error to the caller-facing reason
// stored on the record. Internals never leak into the record.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, domain.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrUpstreamTimeout.Error()
	case errors.Is(err, domain.ErrInsufficientQuota):
		return domain.ErrInsufficientQuota.Error()
	case errors.Is(err, domain.ErrRateLimited):
		return domain.ErrRateLimited.Error()
	case errors.Is(err, domain.ErrMalformedResponse):
		return domain.ErrMalformedResponse.Error()
	default:
		return "Error processing your request"
	}
}
