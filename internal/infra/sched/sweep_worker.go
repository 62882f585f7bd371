package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-gateway/internal/domain/ports/repository"
	"ai-chat-gateway/internal/infra/metrics"
)

// SweepWorker periodically removes terminal chat records older than maxAge.
// Only wired for stores without native per-key expiry; Redis handles its own.
type SweepWorker struct {
	interval time.Duration
	maxAge   time.Duration
	sweeper  repository.Sweeper
	log      *zerolog.Logger
}

func NewSweepWorker(interval, maxAge time.Duration, sweeper repository.Sweeper, logger *zerolog.Logger) *SweepWorker {
	swLog := logger.With().Str("component", "SweepWorker").Logger()
	return &SweepWorker{
		interval: interval,
		maxAge:   maxAge,
		sweeper:  sweeper,
		log:      &swLog,
	}
}

func (w *SweepWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting sweep worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping sweep worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.sweeper.SweepTerminal(ctx, w.maxAge)
			if err != nil {
				w.log.Error().Err(err).Msg("sweep worker error")
			}
			if n > 0 {
				metrics.AddRecordsSwept(n)
				w.log.Info().Int("count", n).Msg("terminal records swept")
			}
		}
	}
}
