// Package ollama implements ai.Provider for local models served by Ollama,
// through langchaingo.
package ollama

import (
	"context"
	"fmt"

	"github.com/GoCodeAlone/wfgen/ai"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	defaultServerURL = "http://localhost:11434"
	defaultModel     = "llama3.1"
)

// ClientConfig holds configuration for the Ollama client.
type ClientConfig struct {
	ServerURL   string  // Defaults to http://localhost:11434
	Model       string  // Defaults to llama3.1
	Temperature float64 // 0 leaves the model default
}

// contentGenerator is the subset of llms.Model used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// Client implements ai.Provider using an Ollama server.
type Client struct {
	llm         contentGenerator
	model       string
	temperature float64
}

// NewClient creates a new Ollama client. No connection is made until the
// first completion.
func NewClient(cfg ClientConfig) (*Client, error) {
	serverURL := cfg.ServerURL
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	llm, err := ollama.New(ollama.WithServerURL(serverURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return &Client{llm: llm, model: model, temperature: cfg.Temperature}, nil
}

// Name implements ai.Provider.
func (c *Client) Name() string { return ai.ProviderOllama }

// Complete implements ai.Provider.
func (c *Client) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	resp, err := c.llm.GenerateContent(ctx, toMessages(req), c.callOptions(req)...)
	if err != nil {
		return nil, fmt.Errorf("ollama generate: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from ollama")
	}
	model := req.Model
	if model == "" {
		model = c.model
	}
	choice := resp.Choices[0]
	return &ai.CompletionResponse{
		ID:           uuid.NewString(),
		Model:        model,
		Text:         choice.Content,
		FinishReason: choice.StopReason,
	}, nil
}

func toMessages(req ai.CompletionRequest) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}
	for _, m := range req.Conversation() {
		role := llms.ChatMessageTypeHuman
		if m.Role == ai.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		msgs = append(msgs, llms.TextParts(role, m.Content))
	}
	return msgs
}

func (c *Client) callOptions(req ai.CompletionRequest) []llms.CallOption {
	var opts []llms.CallOption
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(req.MaxTokens))
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	if temperature > 0 {
		opts = append(opts, llms.WithTemperature(temperature))
	}
	return opts
}
