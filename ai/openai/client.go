// Package openai implements ai.Provider on the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/GoCodeAlone/wfgen/ai"
	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

// ClientConfig holds configuration for the OpenAI client.
type ClientConfig struct {
	APIKey      string  // Defaults to OPENAI_API_KEY env var
	Model       string  // Defaults to gpt-4o-mini
	BaseURL     string  // Optional; e.g. an OpenAI-compatible gateway ending in /v1
	MaxTokens   int     // 0 leaves the API default
	Temperature float32 // 0 leaves the API default
}

// Client implements ai.Provider with github.com/sashabaranov/go-openai.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewClient creates a new OpenAI client.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	oc := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Name implements ai.Provider.
func (c *Client) Name() string { return ai.ProviderOpenAI }

// Complete implements ai.Provider.
func (c *Client) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	temperature := float32(req.Temperature)
	if temperature == 0 {
		temperature = c.temperature
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Conversation() {
		role := openai.ChatMessageRoleUser
		if m.Role == ai.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", statusError(err))
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from API")
	}

	choice := resp.Choices[0]
	if resp.Model != "" {
		model = resp.Model
	}
	return &ai.CompletionResponse{
		ID:           resp.ID,
		Model:        model,
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: ai.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// statusError maps go-openai HTTP failures onto ai.StatusError so retry
// decisions see the status code.
func statusError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &ai.StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &ai.StatusError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return err
}
