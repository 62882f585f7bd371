package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"ai-chat-gateway/internal/domain"
	"ai-chat-gateway/internal/infra/logging"
	"ai-chat-gateway/internal/infra/metrics"
)

type chatRequestBody struct {
	Message string `json:"message"`
}

type statusResponse struct {
	RequestID      string    `json:"requestId"`
	Status         string    `json:"status"`
	Result         string    `json:"result,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	ProcessingTime int64     `json:"processingTime,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto the HTTP taxonomy. Only canonical,
// caller-safe messages ever leave the process.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMessageRequired):
		return http.StatusBadRequest, domain.ErrMessageRequired.Error()
	case errors.Is(err, domain.ErrMessageTooLong):
		return http.StatusBadRequest, domain.ErrMessageTooLong.Error()
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "Request ID is required"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Request not found. It may have expired or never existed."
	case errors.Is(err, domain.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, domain.ErrUpstreamTimeout.Error()
	case errors.Is(err, domain.ErrInsufficientQuota):
		return http.StatusPaymentRequired, domain.ErrInsufficientQuota.Error()
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, domain.ErrRateLimited.Error()
	case errors.Is(err, domain.ErrMalformedResponse):
		return http.StatusInternalServerError, domain.ErrMalformedResponse.Error()
	default:
		return http.StatusInternalServerError, "Error processing your request"
	}
}

func (s *Server) httpError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	writeError(w, status, msg)
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		metrics.IncChatRequest("async", "rejected")
		writeError(w, http.StatusBadRequest, domain.ErrMessageRequired.Error())
		return
	}

	req, err := s.chat.Submit(r.Context(), body.Message)
	if err != nil {
		metrics.IncChatRequest("async", "rejected")
		s.httpError(w, err)
		return
	}

	metrics.IncChatRequest("async", "accepted")
	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     req.ID,
		"status": string(req.Status),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("requestId")
	if id == "" {
		writeError(w, http.StatusBadRequest, "Request ID is required")
		return
	}

	req, err := s.chat.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Request not found. It may have expired or never existed.")
			return
		}
		writeError(w, http.StatusInternalServerError, "Error checking request status")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		RequestID:      req.ID,
		Status:         string(req.Status),
		Result:         req.Result,
		Error:          req.Error,
		Timestamp:      req.Timestamp,
		ProcessingTime: req.ProcessingTime,
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		metrics.IncChatRequest("sync", "rejected")
		writeError(w, http.StatusBadRequest, domain.ErrMessageRequired.Error())
		return
	}

	reply, err := s.chat.Send(r.Context(), body.Message)
	if err != nil {
		metrics.IncChatRequest("sync", "failed")
		s.httpError(w, err)
		return
	}

	metrics.IncChatRequest("sync", "success")
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		metrics.IncChatRequest("stream", "rejected")
		writeError(w, http.StatusBadRequest, domain.ErrMessageRequired.Error())
		return
	}

	flusher, canFlush := w.(http.Flusher)
	wrote := false
	commit := func() {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
		wrote = true
	}

	err := s.chat.Stream(r.Context(), body.Message, func(fragment string) error {
		if !wrote {
			commit()
		}
		if _, err := io.WriteString(w, fragment); err != nil {
			return err
		}
		if canFlush {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		if wrote {
			// Headers are committed; a structured error is no longer possible.
			// Terminate the body and let the client notice the truncation.
			l := logging.With(r.Context(), s.log)
			l.Error().Err(err).Msg("stream failed after first byte")
			metrics.IncChatRequest("stream", "failed")
			return
		}
		metrics.IncChatRequest("stream", "failed")
		s.httpError(w, err)
		return
	}
	if !wrote {
		// Upstream produced no fragments; still commit an empty 200 body.
		commit()
	}
	metrics.IncChatRequest("stream", "success")
}
