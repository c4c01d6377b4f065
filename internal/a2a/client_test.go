package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcHandler decodes a JSONRPCRequest and writes back the JSONRPCResponse fn builds.
func rpcHandler(t *testing.T, fn func(req JSONRPCRequest) JSONRPCResponse) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method, "A2A always uses POST")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "testweave", r.Header.Get("User-Agent"))

		var req JSONRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, JSONRPCVersion, req.JSONRPC)

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(fn(req)))
	}
}

func TestSendMessage_HappyPath(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		assert.Equal(t, MethodSendMessage, req.Method)

		var params SendMessageRequest
		require.NoError(t, json.Unmarshal(req.Params, &params))
		assert.Equal(t, RoleUser, params.Message.Role)
		assert.Equal(t, "write tests", params.Message.Text())

		task := Task{
			ID:     "task-001",
			Status: TaskStatus{State: TaskStateCompleted, Timestamp: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)},
			Artifacts: []Artifact{
				{ArtifactID: "art-1", Name: "suite", Parts: []Part{TextPart("<code>func x() {}</code>")}},
			},
		}
		result, err := json.Marshal(task)
		require.NoError(t, err)
		return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Result: result}
	}))
	defer ts.Close()

	client := NewHTTPClient()
	task, err := client.SendMessage(context.Background(), ts.URL, SendMessageRequest{
		Message: NewMessage(RoleUser, "write tests"),
	})
	require.NoError(t, err)
	assert.Equal(t, "task-001", task.ID)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
	assert.Equal(t, "<code>func x() {}</code>", task.Text())
}

func TestSendMessage_RPCError(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		return JSONRPCResponse{
			JSONRPC: JSONRPCVersion,
			ID:      req.ID,
			Error:   &JSONRPCError{Code: ErrCodeInternal, Message: "boom"},
		}
	}))
	defer ts.Close()

	_, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{Message: NewMessage(RoleUser, "x")})
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, ErrCodeInternal, rpcErr.Code)
	assert.Equal(t, MethodSendMessage, rpcErr.Method)
	assert.Contains(t, err.Error(), "boom")
}

func TestSendMessage_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{Message: NewMessage(RoleUser, "x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBusy)
	assert.Contains(t, err.Error(), "HTTP 503")
}

func TestSendMessage_BadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{Message: NewMessage(RoleUser, "x")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBusy)
	assert.Contains(t, err.Error(), "HTTP 403: nope")
}

func TestSendMessage_BusyCode(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID, Error: &JSONRPCError{Code: ErrCodeBusy, Message: "queue full"}}
	}))
	defer ts.Close()

	_, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{Message: NewMessage(RoleUser, "x")})
	assert.ErrorIs(t, err, ErrBusy)
}

func TestSendMessage_EmptyResponse(t *testing.T) {
	ts := httptest.NewServer(rpcHandler(t, func(req JSONRPCRequest) JSONRPCResponse {
		return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: req.ID}
	}))
	defer ts.Close()

	_, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{Message: NewMessage(RoleUser, "x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "neither result nor error")
}

func TestSendMessage_ContextDeadline(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHTTPClient().SendMessage(ctx, ts.URL, SendMessageRequest{Message: NewMessage(RoleUser, "x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDiscoverAgent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, WellKnownCardPath, r.URL.Path)
		_ = json.NewEncoder(w).Encode(AgentCard{Name: "remote-writer", Version: "1"})
	}))
	defer ts.Close()

	card, err := NewHTTPClient().DiscoverAgent(context.Background(), ts.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, "remote-writer", card.Name)
}

func TestTaskText_FallsBackToStatusMessage(t *testing.T) {
	msg := NewMessage(RoleAgent, "failed: no source")
	task := &Task{Status: TaskStatus{State: TaskStateFailed, Message: &msg}}
	assert.Equal(t, "failed: no source", task.Text())
	assert.Empty(t, (&Task{}).Text())
}
