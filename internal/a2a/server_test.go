package a2a

import (
	"bytes"
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
)

func echoAgent() *Agent {
	return NewAgent(func(_ context.Context, msg Message) ([]Artifact, error) {
		if strings.Contains(msg.Text(), "fail") {
			return nil, errors.New("cannot comply")
		}
		return []Artifact{NewArtifact("echo", TextPart(strings.ToUpper(msg.Text())))}, nil
	})
}

func TestServer_RoundTrip(t *testing.T) {
	card := AgentCard{Name: "echo", Version: "test"}
	srv := NewServer(card, echoAgent())
	ts := httptest.NewServer(srv.HTTPHandler())
	defer ts.Close()

	client := NewHTTPClient()
	ctx := context.Background()

	got, err := client.DiscoverAgent(ctx, ts.URL)
	require.NoError(t, err)
	assert.Equal(t, "echo", got.Name)

	task, err := client.SendMessage(ctx, ts.URL, SendMessageRequest{Message: NewMessage(RoleUser, "hello")})
	require.NoError(t, err)
	assert.Equal(t, TaskStateCompleted, task.Status.State)
	assert.Equal(t, "HELLO", task.Text())
	require.Len(t, task.History, 1)

	again, err := client.GetTask(ctx, ts.URL, GetTaskRequest{ID: task.ID})
	require.NoError(t, err)
	assert.Equal(t, task.ID, again.ID)
	assert.Equal(t, "HELLO", again.Text())
}

func TestServer_ProcessFailureRecordedOnTask(t *testing.T) {
	ts := httptest.NewServer(NewServer(AgentCard{Name: "echo"}, echoAgent()).HTTPHandler())
	defer ts.Close()

	task, err := NewHTTPClient().SendMessage(context.Background(), ts.URL, SendMessageRequest{Message: NewMessage(RoleUser, "please fail")})
	require.NoError(t, err)
	assert.Equal(t, TaskStateFailed, task.Status.State)
	assert.True(t, task.Status.State.IsTerminal())
	assert.Equal(t, "cannot comply", task.Text())
}

func TestServer_UnknownTask(t *testing.T) {
	ts := httptest.NewServer(NewServer(AgentCard{Name: "echo"}, echoAgent()).HTTPHandler())
	defer ts.Close()

	_, err := NewHTTPClient().GetTask(context.Background(), ts.URL, GetTaskRequest{ID: "missing"})
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, ErrCodeTaskNotFound, rpcErr.Code)
}

func TestServer_ProtocolErrors(t *testing.T) {
	ts := httptest.NewServer(NewServer(AgentCard{Name: "echo"}, echoAgent()).HTTPHandler())
	defer ts.Close()

	post := func(body string) JSONRPCResponse {
		t.Helper()
		resp, err := http.Post(ts.URL, "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out JSONRPCResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	assert.Equal(t, ErrCodeParse, post("{not json").Error.Code)
	assert.Equal(t, ErrCodeMethodNotFound, post(`{"jsonrpc":"2.0","id":1,"method":"tasks/list"}`).Error.Code)
	assert.Equal(t, ErrCodeInvalidParams, post(`{"jsonrpc":"2.0","id":2,"method":"message/send","params":[1]}`).Error.Code)
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer(AgentCard{Name: "echo"}, echoAgent())
	ctx := context.Background()

	addr, err := srv.Start(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { require.NoError(t, srv.Stop(ctx)) }()

	card, err := NewHTTPClient().DiscoverAgent(ctx, "http://"+addr)
	require.NoError(t, err)
	assert.Equal(t, "echo", card.Name)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeTaskNotFound, errorCode(fmt.Errorf("lookup: %w", ErrTaskNotFound)))
	assert.Equal(t, ErrCodeBusy, errorCode(ErrBusy))
	assert.Equal(t, ErrCodeInternal, errorCode(errors.New("boom")))
	assert.ErrorIs(t, &RPCError{Code: ErrCodeBusy}, ErrBusy)
	assert.NotErrorIs(t, &RPCError{Code: ErrCodeInternal}, ErrBusy)
}
