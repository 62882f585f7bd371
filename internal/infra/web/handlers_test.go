//go:build !integration

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ai-chat-gateway/internal/domain"
	"ai-chat-gateway/internal/domain/ports/adapter"
	"ai-chat-gateway/internal/domain/ports/repository"
	"ai-chat-gateway/internal/infra/memory"
	"ai-chat-gateway/internal/usecase"
)

// ---- Fakes ----

// idleDispatcher accepts the task and never runs it; records stay pending.
type idleDispatcher struct{}

func (idleDispatcher) Dispatch(string) error { return nil }

// inlineDispatcher completes the record synchronously, standing in for a
// background processor that finished before the first poll.
type inlineDispatcher struct {
	repo repository.ChatRequestRepository
}

func (d *inlineDispatcher) Dispatch(id string) error {
	ctx := context.Background()
	req, err := d.repo.Find(ctx, id)
	if err != nil {
		return err
	}
	if err := req.Complete("test reply", 5*time.Millisecond); err != nil {
		return err
	}
	return d.repo.Save(ctx, req)
}

type stubAI struct {
	reply     string
	err       error
	fragments []string
	midErr    error // returned after all fragments were emitted
}

func (s *stubAI) Complete(ctx context.Context, messages []adapter.Message) (string, error) {
	return s.reply, s.err
}

func (s *stubAI) CompleteStream(ctx context.Context, messages []adapter.Message, emit func(string) error) error {
	if s.err != nil {
		return s.err
	}
	for _, f := range s.fragments {
		if err := emit(f); err != nil {
			return err
		}
	}
	return s.midErr
}

func newTestServer(t *testing.T, mode string, ai adapter.CompletionClient, disp usecase.Dispatcher) (*httptest.Server, *memory.RequestRepo) {
	t.Helper()
	log := zerolog.Nop()
	repo := memory.NewRequestRepo(15 * time.Minute)
	if disp == nil {
		disp = &inlineDispatcher{repo: repo}
	}
	uc := usecase.NewChatUseCase(repo, ai, disp, "You are a helpful assistant.", 200, &log)
	srv := httptest.NewServer(NewServer(uc, mode, nil, RateLimit{}, &log).Router())
	t.Cleanup(srv.Close)
	return srv, repo
}

func postChat(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

var idPattern = regexp.MustCompile(`^[a-z0-9]+$`)

// ---- Tests ----

func TestPreflight(t *testing.T) {
	srv, _ := newTestServer(t, ModeAsync, &stubAI{}, idleDispatcher{})

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/chat", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin = %q", got)
	}
	if resp.Header.Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("allow-methods header missing")
	}
	if resp.ContentLength > 0 {
		t.Fatal("preflight response must have no body")
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, ModeAsync, &stubAI{}, idleDispatcher{})

	resp, err := http.Get(srv.URL + "/chat")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET /chat status = %d, want 405", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["error"] == "" {
		t.Fatal("405 body must carry an error field")
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/chat/status?requestId=x", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /chat/status status = %d, want 405", resp.StatusCode)
	}
}

func TestSubmitAndPoll(t *testing.T) {
	srv, _ := newTestServer(t, ModeAsync, &stubAI{}, nil)

	resp := postChat(t, srv, `{"message":"hello"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit status = %d, want 202", resp.StatusCode)
	}
	accepted := decode[map[string]string](t, resp)
	if !idPattern.MatchString(accepted["id"]) {
		t.Fatalf("id %q does not match [a-z0-9]+", accepted["id"])
	}
	if accepted["status"] != "pending" {
		t.Fatalf("status = %q, want pending", accepted["status"])
	}

	// The inline dispatcher finished before this poll.
	statusURL := srv.URL + "/chat/status?requestId=" + accepted["id"]
	for i := 0; i < 2; i++ { // terminal state must be stable across polls
		resp, err := http.Get(statusURL)
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("poll status = %d, want 200", resp.StatusCode)
		}
		st := decode[statusResponse](t, resp)
		if st.Status != "completed" || st.Result != "test reply" {
			t.Fatalf("record = %+v", st)
		}
		if st.Error != "" {
			t.Fatal("result and error must never both be set")
		}
		if st.RequestID != accepted["id"] {
			t.Fatalf("requestId = %q", st.RequestID)
		}
	}
}

func TestSubmitPendingWhenProcessorSlow(t *testing.T) {
	srv, _ := newTestServer(t, ModeAsync, &stubAI{}, idleDispatcher{})

	accepted := decode[map[string]string](t, postChat(t, srv, `{"message":"hello"}`))
	resp, err := http.Get(srv.URL + "/chat/status?requestId=" + accepted["id"])
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	st := decode[statusResponse](t, resp)
	if st.Status != "pending" {
		t.Fatalf("status = %q, want pending", st.Status)
	}
	if st.Result != "" || st.Error != "" {
		t.Fatalf("pending record must carry neither result nor error: %+v", st)
	}
}

func TestSubmitValidation(t *testing.T) {
	srv, repo := newTestServer(t, ModeAsync, &stubAI{}, idleDispatcher{})

	cases := []string{
		`{"message":""}`,
		`{"message":"` + strings.Repeat("a", 201) + `"}`,
		`not json`,
	}
	for _, body := range cases {
		resp := postChat(t, srv, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %q: status = %d, want 400", body, resp.StatusCode)
		}
		e := decode[map[string]string](t, resp)
		if e["error"] == "" {
			t.Fatalf("body %q: missing error field", body)
		}
	}
	if repo.Len() != 0 {
		t.Fatal("rejected submissions must not write to the store")
	}
}

func TestStatusValidation(t *testing.T) {
	srv, _ := newTestServer(t, ModeAsync, &stubAI{}, idleDispatcher{})

	resp, _ := http.Get(srv.URL + "/chat/status")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing id status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(srv.URL + "/chat/status?requestId=doesnotexist")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", resp.StatusCode)
	}
	e := decode[map[string]string](t, resp)
	if !strings.Contains(e["error"], "expired or never existed") {
		t.Fatalf("404 error = %q", e["error"])
	}
}

func TestSyncMode(t *testing.T) {
	srv, _ := newTestServer(t, ModeSync, &stubAI{reply: "sync reply"}, idleDispatcher{})

	resp := postChat(t, srv, `{"message":"hello"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["response"] != "sync reply" {
		t.Fatalf("response = %q", body["response"])
	}
}

func TestSyncModeUpstreamErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{domain.ErrInsufficientQuota, http.StatusPaymentRequired},
		{domain.ErrRateLimited, http.StatusTooManyRequests},
		{domain.ErrMalformedResponse, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		srv, _ := newTestServer(t, ModeSync, &stubAI{err: tc.err}, idleDispatcher{})
		resp := postChat(t, srv, `{"message":"hello"}`)
		if resp.StatusCode != tc.want {
			t.Fatalf("err %v: status = %d, want %d", tc.err, resp.StatusCode, tc.want)
		}
		e := decode[map[string]string](t, resp)
		if e["error"] == "" {
			t.Fatalf("err %v: missing error field", tc.err)
		}
		if strings.Contains(e["error"], "boom") {
			t.Fatal("internal error detail leaked to the caller")
		}
	}
}

func TestStreamMode(t *testing.T) {
	ai := &stubAI{fragments: []string{"Hel", "lo", " world"}}
	srv, _ := newTestServer(t, ModeStream, ai, idleDispatcher{})

	resp := postChat(t, srv, `{"message":"hello"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type = %q", ct)
	}
	var sb strings.Builder
	buf := make([]byte, 64)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	if sb.String() != "Hello world" {
		t.Fatalf("streamed body = %q, want %q", sb.String(), "Hello world")
	}
}

func TestStreamModeFailsBeforeFirstByte(t *testing.T) {
	srv, _ := newTestServer(t, ModeStream, &stubAI{err: domain.ErrRateLimited}, idleDispatcher{})

	resp := postChat(t, srv, `{"message":"hello"}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	e := decode[map[string]string](t, resp)
	if e["error"] == "" {
		t.Fatal("structured error expected before any byte is streamed")
	}
}

func TestStreamModeFailsMidStream(t *testing.T) {
	ai := &stubAI{fragments: []string{"Hel"}, midErr: errors.New("upstream died")}
	srv, _ := newTestServer(t, ModeStream, ai, idleDispatcher{})

	resp := postChat(t, srv, `{"message":"hello"}`)
	defer resp.Body.Close()
	// Headers were committed before the failure; the status stays 200 and the
	// body is simply truncated.
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var sb strings.Builder
	buf := make([]byte, 64)
	for {
		n, err := resp.Body.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	if sb.String() != "Hel" {
		t.Fatalf("body = %q, want the fragments sent before the failure", sb.String())
	}
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, ModeAsync, &stubAI{}, idleDispatcher{})
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
