// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-chat-gateway/internal/config"
	"ai-chat-gateway/internal/domain/ports/adapter"
	"ai-chat-gateway/internal/domain/ports/repository"
	aiAdapters "ai-chat-gateway/internal/infra/adapters/ai"
	"ai-chat-gateway/internal/infra/logging"
	"ai-chat-gateway/internal/infra/memory"
	"ai-chat-gateway/internal/infra/metrics"
	red "ai-chat-gateway/internal/infra/redis"
	"ai-chat-gateway/internal/infra/sched"
	"ai-chat-gateway/internal/infra/web"
	"ai-chat-gateway/internal/infra/worker"
	"ai-chat-gateway/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	// ---- Job store ----
	var requests repository.ChatRequestRepository
	var limiter *red.RateLimiter
	switch cfg.Store.Backend {
	case "redis":
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer redisClient.Close()
		requests = red.NewRequestRepo(redisClient, cfg.Store.TTL)
		if cfg.Server.RateLimit.Requests > 0 {
			limiter = red.NewRateLimiter(redisClient)
		}
		logger.Info().Str("backend", "redis").Dur("ttl", cfg.Store.TTL).Msg("job store ready")
	default:
		memRepo := memory.NewRequestRepo(cfg.Store.TTL)
		requests = memRepo
		// The in-memory map is only correct while a single long-lived
		// instance serves all traffic; scale out requires the redis backend.
		logger.Warn().Msg("using in-memory job store; records are lost on restart and invisible to other instances")
		sweeper := sched.NewSweepWorker(time.Minute, cfg.Store.TTL, memRepo, logger)
		go func() { _ = sweeper.Run(ctx) }()
	}

	// ---- Completion client ----
	var ai adapter.CompletionClient
	switch cfg.AI.Provider {
	case "noop":
		ai = aiAdapters.NewNoopAdapter()
		logger.Info().Msg("completion client: noop")
	case "openai":
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model,
			cfg.AI.MaxTokens, cfg.AI.Temperature, cfg.AI.RequestTimeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		logger.Info().Str("model", cfg.AI.Model).Msg("completion client: openai sdk")
	case "deepseek":
		ai, err = aiAdapters.NewDeepSeekAdapter(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model,
			cfg.AI.MaxTokens, cfg.AI.Temperature, cfg.AI.RequestTimeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("deepseek adapter")
		}
		logger.Info().Str("base", cfg.AI.BaseURL).Str("model", cfg.AI.Model).Msg("completion client: deepseek")
	default:
		logger.Fatal().Str("provider", cfg.AI.Provider).Msg("unknown ai.provider")
	}
	ai = aiAdapters.NewLimitedClient(ai, cfg.AI.ConcurrentLimit)

	// ---- Background processing ----
	pool := worker.NewPool(cfg.Worker.Count, logger)
	pool.Start(ctx)
	processor := worker.NewProcessor(requests, ai, pool, cfg.AI.Provider,
		cfg.AI.SystemPrompt, cfg.AI.ProcessDeadline, logger)

	// ---- Use case + HTTP ----
	chatUC := usecase.NewChatUseCase(requests, ai, processor, cfg.AI.SystemPrompt, cfg.AI.MaxMessageChars, logger)
	srv := web.NewServer(chatUC, cfg.Server.Mode, limiter, web.RateLimit{
		Requests: cfg.Server.RateLimit.Requests,
		Window:   cfg.Server.RateLimit.Window,
	}, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("mode", cfg.Server.Mode).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	if err := server.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
	pool.Stop()
}
