package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newGateway(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL, WithPolling(10*time.Millisecond, 5))
}

func TestSubmit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["message"] != "hello" {
			t.Errorf("message = %q", body["message"])
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "abc123", "status": "pending"})
	})
	c := newGateway(t, mux)

	id, err := c.Submit(context.Background(), "hello")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("id = %q", id)
	}
}

func TestSubmitSurfacesServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Message is required in request body"})
	})
	c := newGateway(t, mux)

	_, err := c.Submit(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "Message is required") {
		t.Fatalf("err = %v", err)
	}
}

func TestPollUntilCompleted(t *testing.T) {
	var polls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/status", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("requestId") != "abc123" {
			t.Errorf("requestId = %q", r.URL.Query().Get("requestId"))
		}
		if polls.Add(1) < 3 {
			_ = json.NewEncoder(w).Encode(map[string]string{"requestId": "abc123", "status": "pending"})
			return
		}
		fmt.Fprint(w, `{"requestId":"abc123","status":"completed","result":"hi","processingTime":80}`)
	})
	c := newGateway(t, mux)

	res, err := c.Poll(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if res.Status != "completed" || res.Result != "hi" || res.ProcessingTime != 80 {
		t.Fatalf("result = %+v", res)
	}
	if polls.Load() != 3 {
		t.Fatalf("polls = %d, want 3", polls.Load())
	}
}

func TestPollStopsOnExpiredRecord(t *testing.T) {
	var polls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/status", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Request not found. It may have expired or never existed."})
	})
	c := newGateway(t, mux)

	_, err := c.Poll(context.Background(), "gone")
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("err = %v, want ErrExpired", err)
	}
	if polls.Load() != 1 {
		t.Fatalf("404 must stop polling immediately, polled %d times", polls.Load())
	}
}

func TestPollBudgetExhausted(t *testing.T) {
	var polls atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/chat/status", func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"requestId": "abc123", "status": "pending"})
	})
	c := newGateway(t, mux)

	_, err := c.Poll(context.Background(), "abc123")
	if !errors.Is(err, ErrPollBudgetExhausted) {
		t.Fatalf("err = %v, want ErrPollBudgetExhausted", err)
	}
	if polls.Load() != 5 {
		t.Fatalf("polls = %d, want the full budget of 5", polls.Load())
	}
}

func TestSendEndToEnd(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "abc123", "status": "pending"})
	})
	mux.HandleFunc("/chat/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"requestId":"abc123","status":"error","error":"Error processing your request"}`)
	})
	c := newGateway(t, mux)

	res, err := c.Send(context.Background(), "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if res.Status != "error" || res.Error == "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestStreamCopiesBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fl := w.(http.Flusher)
		for _, frag := range []string{"Hel", "lo", " world"} {
			fmt.Fprint(w, frag)
			fl.Flush()
		}
	})
	c := newGateway(t, mux)

	var sb strings.Builder
	if err := c.Stream(context.Background(), "hello", &sb); err != nil {
		t.Fatalf("stream: %v", err)
	}
	if sb.String() != "Hello world" {
		t.Fatalf("streamed = %q", sb.String())
	}
}

func TestStreamSurfacesStructuredError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Too many requests. Please try again later."})
	})
	c := newGateway(t, mux)

	err := c.Stream(context.Background(), "hello", &strings.Builder{})
	if err == nil || !strings.Contains(err.Error(), "Too many requests") {
		t.Fatalf("err = %v", err)
	}
}
