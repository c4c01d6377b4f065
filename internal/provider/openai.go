package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Compile-time interface check.
var _ Provider = (*OpenAI)(nil)

// ErrQuota marks a backend refusal for quota or rate reasons. The Chain
// treats it like any other transport failure and falls back.
var ErrQuota = errors.New("provider: quota exhausted")

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAI-compatible chat completion client.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // e.g. a local OpenAI-compatible server; empty for api.openai.com
	Model       string
	System      string // system prompt; empty sends none
	Temperature float32
	HTTPClient  *http.Client
}

// OpenAI generates text through the chat completion API.
type OpenAI struct {
	client      *openai.Client
	model       string
	system      string
	temperature float32
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		system:      cfg.System,
		temperature: cfg.Temperature,
	}
}

// Generate sends the mission and its background as one user message.
func (o *OpenAI) Generate(ctx context.Context, mission, background string) (string, error) {
	var msgs []openai.ChatCompletionMessage
	if o.system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: o.system})
	}
	msgs = append(msgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: joinPrompt(mission, background),
	})

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    msgs,
		Temperature: o.temperature,
	})
	if err != nil {
		if isQuotaError(err) {
			return "", fmt.Errorf("provider: openai %s: %w: %v", o.model, ErrQuota, err)
		}
		return "", fmt.Errorf("provider: openai %s: %w", o.model, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("provider: openai %s: %w", o.model, ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func isQuotaError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusTooManyRequests {
			return true
		}
		if code, ok := apiErr.Code.(string); ok && code == "insufficient_quota" {
			return true
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	return false
}

// joinPrompt lays out a mission followed by its background material.
func joinPrompt(mission, background string) string {
	if strings.TrimSpace(background) == "" {
		return mission
	}
	return mission + "\n\n" + background
}
