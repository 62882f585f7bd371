// Package client is the gateway's polling counterpart: it submits a message,
// then polls the status endpoint at a fixed interval until a terminal status
// arrives or the attempt budget runs out.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrExpired means the status endpoint returned 404: the record expired
	// or never existed. Terminal; not worth retrying.
	ErrExpired = errors.New("request not found: it may have expired or never existed")
	// ErrPollBudgetExhausted means the request was still pending after the
	// full attempt budget.
	ErrPollBudgetExhausted = errors.New("timed out waiting for the response")
)

// Result is the terminal projection of a chat request.
type Result struct {
	RequestID      string    `json:"requestId"`
	Status         string    `json:"status"`
	Result         string    `json:"result,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	ProcessingTime int64     `json:"processingTime,omitempty"`
}

func (r *Result) Terminal() bool {
	return r.Status == "completed" || r.Status == "error"
}

type Client struct {
	base     string
	http     *http.Client
	interval time.Duration
	attempts int
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithPolling overrides the fixed poll interval and attempt budget.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(c *Client) {
		c.interval = interval
		c.attempts = attempts
	}
}

func New(base string, opts ...Option) *Client {
	c := &Client{
		base:     strings.TrimRight(base, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
		interval: time.Second,
		attempts: 45,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiError struct {
	Error string `json:"error"`
}

func (c *Client) decodeError(resp *http.Response) error {
	var e apiError
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
		return fmt.Errorf("server responded with status %d", resp.StatusCode)
	}
	return errors.New(e.Error)
}

// Submit sends the message and returns the job id from the 202 response.
func (c *Client) Submit(ctx context.Context, message string) (string, error) {
	body, _ := json.Marshal(map[string]string{"message": message})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return "", c.decodeError(resp)
	}

	var accepted struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		return "", err
	}
	if accepted.ID == "" {
		return "", errors.New("submission response carried no id")
	}
	return accepted.ID, nil
}

// Status performs one status lookup. A 404 maps to ErrExpired.
func (c *Client) Status(ctx context.Context, id string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/chat/status?requestId="+id, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrExpired
	default:
		return nil, c.decodeError(resp)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Poll calls Status at the configured interval until a terminal status or the
// attempt budget is exhausted.
func (c *Client) Poll(ctx context.Context, id string) (*Result, error) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.attempts; attempt++ {
		res, err := c.Status(ctx, id)
		if err != nil {
			// 404 is terminal; transient transport errors burn an attempt.
			if errors.Is(err, ErrExpired) {
				return nil, err
			}
		} else if res.Terminal() {
			return res, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
	return nil, ErrPollBudgetExhausted
}

// Send submits the message and polls until done.
func (c *Client) Send(ctx context.Context, message string) (*Result, error) {
	id, err := c.Submit(ctx, message)
	if err != nil {
		return nil, err
	}
	return c.Poll(ctx, id)
}

// Stream sends the message against a gateway in streaming mode and copies
// fragments to out as they arrive.
func (c *Client) Stream(ctx context.Context, message string, out io.Writer) error {
	body, _ := json.Marshal(map[string]string{"message": message})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}

	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
