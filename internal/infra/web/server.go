package web

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-chat-gateway/internal/domain"
	red "ai-chat-gateway/internal/infra/redis"
	"ai-chat-gateway/internal/usecase"
)

// Mode selects how POST /chat delivers the completion.
const (
	ModeAsync  = "async"
	ModeSync   = "sync"
	ModeStream = "stream"
)

// RateLimit is the fixed-counter policy applied per client IP.
// Disabled when Requests <= 0.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

type Server struct {
	chat    usecase.ChatUseCase
	mode    string
	limiter *red.RateLimiter
	limit   RateLimit
	log     *zerolog.Logger
}

func NewServer(chat usecase.ChatUseCase, mode string, limiter *red.RateLimiter, limit RateLimit, logger *zerolog.Logger) *Server {
	if mode == "" {
		mode = ModeAsync
	}
	return &Server{
		chat:    chat,
		mode:    mode,
		limiter: limiter,
		limit:   limit,
		log:     logger,
	}
}

// Router builds the chi router with the full middleware chain.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))
	r.Use(CORS)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/chat", func(r chi.Router) {
		r.Options("/", s.handlePreflight)
		r.Post("/", s.withRateLimit(s.handleChat))
		r.Options("/status", s.handlePreflight)
		r.Get("/status", s.handleStatus)
	})

	return r
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch s.mode {
	case ModeSync:
		s.handleSync(w, r)
	case ModeStream:
		s.handleStream(w, r)
	default:
		s.handleSubmit(w, r)
	}
}

func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil || s.limit.Requests <= 0 {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := s.limiter.Allow(r.Context(), red.ClientKey(clientIP(r)), s.limit.Requests, s.limit.Window)
		if err != nil {
			// Fail open: a broken limiter must not take the gateway down.
			s.log.Error().Err(err).Msg("rate limiter unavailable")
			next(w, r)
			return
		}
		if !ok {
			writeError(w, http.StatusTooManyRequests, domain.ErrRateLimited.Error())
			return
		}
		next(w, r)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
