package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/testweave/internal/a2a"
)

// ---------------------------------------------------------------------------
// OpenAI
// ---------------------------------------------------------------------------

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func chatServer(t *testing.T, status int, body string, seen *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

const completion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "test-model",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "<code>func x() {}</code>"}, "finish_reason": "stop"}]
}`

func TestOpenAI_Generate(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, http.StatusOK, completion, &seen)
	defer srv.Close()

	p := NewOpenAI(OpenAIConfig{APIKey: "k", BaseURL: srv.URL + "/v1", Model: "test-model", System: "You write Go tests."})
	out, err := p.Generate(context.Background(), "Write a test.", "package calc")
	require.NoError(t, err)
	assert.Equal(t, "<code>func x() {}</code>", out)

	assert.Equal(t, "test-model", seen.Model)
	require.Len(t, seen.Messages, 2)
	assert.Equal(t, "system", seen.Messages[0].Role)
	assert.Equal(t, "Write a test.\n\npackage calc", seen.Messages[1].Content)
}

func TestOpenAI_DefaultModelNoSystem(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, http.StatusOK, completion, &seen)
	defer srv.Close()

	_, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL}).Generate(context.Background(), "m", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultOpenAIModel, seen.Model)
	require.Len(t, seen.Messages, 1)
	assert.Equal(t, "m", seen.Messages[0].Content)
}

func TestOpenAI_QuotaError(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests,
		`{"error": {"message": "You exceeded your current quota", "type": "insufficient_quota", "code": "insufficient_quota"}}`, nil)
	defer srv.Close()

	_, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL}).Generate(context.Background(), "m", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrQuota)
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := chatServer(t, http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": []}`, nil)
	defer srv.Close()

	_, err := NewOpenAI(OpenAIConfig{BaseURL: srv.URL}).Generate(context.Background(), "m", "")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

// ---------------------------------------------------------------------------
// A2A
// ---------------------------------------------------------------------------

// stubClient is a hand-written a2a.Client double.
type stubClient struct {
	sendFn func(ctx context.Context, endpoint string, req a2a.SendMessageRequest) (*a2a.Task, error)
}

func (s *stubClient) SendMessage(ctx context.Context, endpoint string, req a2a.SendMessageRequest) (*a2a.Task, error) {
	return s.sendFn(ctx, endpoint, req)
}

func (s *stubClient) GetTask(context.Context, string, a2a.GetTaskRequest) (*a2a.Task, error) {
	return nil, errors.New("not used")
}

func (s *stubClient) DiscoverAgent(context.Context, string) (*a2a.AgentCard, error) {
	return nil, errors.New("not used")
}

func TestA2A_Generate(t *testing.T) {
	client := &stubClient{sendFn: func(_ context.Context, endpoint string, req a2a.SendMessageRequest) (*a2a.Task, error) {
		assert.Equal(t, "http://agent", endpoint)
		assert.Equal(t, "mission\n\nbackground", req.Message.Text())
		require.NotNil(t, req.Configuration)
		assert.True(t, req.Configuration.Blocking)
		return &a2a.Task{
			ID:        "t1",
			Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
			Artifacts: []a2a.Artifact{a2a.NewArtifact("out", a2a.TextPart("generated"))},
		}, nil
	}}

	out, err := NewA2A("http://agent", client).Generate(context.Background(), "mission", "background")
	require.NoError(t, err)
	assert.Equal(t, "generated", out)
}

func TestA2A_FailedTask(t *testing.T) {
	client := &stubClient{sendFn: func(context.Context, string, a2a.SendMessageRequest) (*a2a.Task, error) {
		msg := a2a.NewMessage(a2a.RoleAgent, "model offline")
		return &a2a.Task{ID: "t1", Status: a2a.TaskStatus{State: a2a.TaskStateFailed, Message: &msg}}, nil
	}}

	_, err := NewA2A("http://agent", client).Generate(context.Background(), "m", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model offline")
}

func TestA2A_BusyIsQuota(t *testing.T) {
	client := &stubClient{sendFn: func(context.Context, string, a2a.SendMessageRequest) (*a2a.Task, error) {
		return nil, fmt.Errorf("%w: message/send: HTTP 429", a2a.ErrBusy)
	}}

	_, err := NewA2A("http://agent", client).Generate(context.Background(), "m", "")
	assert.ErrorIs(t, err, ErrQuota)
	assert.ErrorIs(t, err, a2a.ErrBusy)
}

func TestA2A_AgainstServer(t *testing.T) {
	agent := a2a.NewAgent(func(_ context.Context, msg a2a.Message) ([]a2a.Artifact, error) {
		return []a2a.Artifact{a2a.NewArtifact("reply", a2a.TextPart("echo: "+msg.Text()))}, nil
	})
	srv := httptest.NewServer(a2a.NewServer(a2a.AgentCard{Name: "echo"}, agent).HTTPHandler())
	defer srv.Close()

	out, err := NewA2A(srv.URL, nil).Generate(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", out)
}
