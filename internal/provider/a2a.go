package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/testweave/internal/a2a"
)

// Compile-time interface check.
var _ Provider = (*A2A)(nil)

// A2A delegates generation to a remote agent through message/send.
type A2A struct {
	client   a2a.Client
	endpoint string
}

// NewA2A creates a provider for the agent at endpoint. A nil client uses a
// default a2a.HTTPClient.
func NewA2A(endpoint string, client a2a.Client) *A2A {
	if client == nil {
		client = a2a.NewHTTPClient()
	}
	return &A2A{client: client, endpoint: endpoint}
}

// Generate sends mission and background as one blocking user message and
// returns the text of the resulting task.
func (p *A2A) Generate(ctx context.Context, mission, background string) (string, error) {
	task, err := p.client.SendMessage(ctx, p.endpoint, a2a.SendMessageRequest{
		Message:       a2a.NewMessage(a2a.RoleUser, joinPrompt(mission, background)),
		Configuration: &a2a.SendMessageConfig{Blocking: true, AcceptedOutputModes: []string{"text/plain"}},
	})
	if errors.Is(err, a2a.ErrBusy) {
		return "", fmt.Errorf("provider: a2a %s: %w: %w", p.endpoint, ErrQuota, err)
	}
	if err != nil {
		return "", fmt.Errorf("provider: a2a %s: %w", p.endpoint, err)
	}
	if task.Status.State != a2a.TaskStateCompleted {
		return "", fmt.Errorf("provider: a2a %s: task %s ended %s: %s", p.endpoint, task.ID, task.Status.State, task.Text())
	}
	text := task.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("provider: a2a %s: %w", p.endpoint, ErrEmptyResponse)
	}
	return text, nil
}
