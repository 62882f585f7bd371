package model

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"ai-chat-gateway/internal/domain"
)

type ChatRequestStatus string

const (
	ChatRequestPending   ChatRequestStatus = "pending"
	ChatRequestCompleted ChatRequestStatus = "completed"
	ChatRequestError     ChatRequestStatus = "error"
)

// ChatRequest is the single durable entity: one submitted message tracked
// through pending/completed/error. A record transitions out of pending
// exactly once and is never mutated afterwards.
type ChatRequest struct {
	ID      string            `json:"requestId"`
	Status  ChatRequestStatus `json:"status"`
	Message string            `json:"message,omitempty"`
	Result  string            `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
	// Timestamp is the submission time; it drives expiry sweeps.
	Timestamp time.Time `json:"timestamp"`
	// ProcessingTime is the elapsed background processing time in milliseconds,
	// set together with the terminal status.
	ProcessingTime int64 `json:"processingTime,omitempty"`
}

// NewRequestID returns a fresh opaque identifier: a lowercased ULID, i.e. a
// time-ordered prefix plus 80 bits of randomness, matching [a-z0-9]+.
func NewRequestID() string {
	return strings.ToLower(ulid.Make().String())
}

func NewChatRequest(message string) *ChatRequest {
	return &ChatRequest{
		ID:        NewRequestID(),
		Status:    ChatRequestPending,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

func (r *ChatRequest) Terminal() bool {
	return r.Status == ChatRequestCompleted || r.Status == ChatRequestError
}

// Complete moves the record to its completed terminal state. The original
// message is dropped; it is only needed while pending.
func (r *ChatRequest) Complete(result string, elapsed time.Duration) error {
	if r.Status != ChatRequestPending {
		return domain.ErrTerminalState
	}
	r.Status = ChatRequestCompleted
	r.Result = result
	r.Message = ""
	r.ProcessingTime = elapsed.Milliseconds()
	return nil
}

// Fail moves the record to its error terminal state with a caller-facing reason.
func (r *ChatRequest) Fail(reason string, elapsed time.Duration) error {
	if r.Status != ChatRequestPending {
		return domain.ErrTerminalState
	}
	r.Status = ChatRequestError
	r.Error = reason
	r.Message = ""
	r.ProcessingTime = elapsed.Milliseconds()
	return nil
}
