package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

// Client is the calling side of A2A.
type Client interface {
	SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error)
	GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error)
	// DiscoverAgent fetches the card served under WellKnownCardPath.
	DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error)
}

var _ Client = (*HTTPClient)(nil)

// maxMessageBytes caps a JSON-RPC body in either direction.
const maxMessageBytes = 8 << 20

// HTTPClient speaks JSON-RPC over HTTP POST.
type HTTPClient struct {
	hc        *http.Client
	userAgent string
	nextID    atomic.Int64
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout bounds every HTTP exchange, on top of the caller's context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.hc.Timeout = d }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *HTTPClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// NewHTTPClient returns a client whose calls are bounded only by their
// context unless WithTimeout is given.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{hc: &http.Client{}, userAgent: "testweave"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) SendMessage(ctx context.Context, endpoint string, req SendMessageRequest) (*Task, error) {
	return c.callTask(ctx, endpoint, MethodSendMessage, req)
}

func (c *HTTPClient) GetTask(ctx context.Context, endpoint string, req GetTaskRequest) (*Task, error) {
	return c.callTask(ctx, endpoint, MethodGetTask, req)
}

func (c *HTTPClient) DiscoverAgent(ctx context.Context, baseURL string) (*AgentCard, error) {
	data, err := c.do(ctx, "discover", http.MethodGet, strings.TrimRight(baseURL, "/")+WellKnownCardPath, nil)
	if err != nil {
		return nil, err
	}
	var card AgentCard
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("a2a: discover: decode card: %w", err)
	}
	return &card, nil
}

// callTask performs one RPC whose result is a Task.
func (c *HTTPClient) callTask(ctx context.Context, endpoint, method string, params any) (*Task, error) {
	req, err := newRequest(c.nextID.Add(1), method, params)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: marshal request: %w", method, err)
	}
	data, err := c.do(ctx, method, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, err
	}

	var resp JSONRPCResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("a2a: %s: decode response: %w", method, err)
	}
	var task Task
	if err := resp.decode(method, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// do sends one HTTP request and returns the body of a 200 reply. 429 and 503
// replies wrap ErrBusy.
func (c *HTTPClient) do(ctx context.Context, op, verb, url string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, verb, url, rd)
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMessageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("a2a: %s: read reply: %w", op, err)
	}
	if len(data) > maxMessageBytes {
		return nil, fmt.Errorf("a2a: %s: reply exceeds %d bytes", op, maxMessageBytes)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return data, nil
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: %s: HTTP %d", ErrBusy, op, resp.StatusCode)
	}
	return nil, fmt.Errorf("a2a: %s: HTTP %d: %s", op, resp.StatusCode, strings.TrimSpace(string(data)))
}
