// Package llm implements ai.Provider against the Anthropic Messages API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/GoCodeAlone/wfgen/ai"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

// ClientConfig holds configuration for the Anthropic client.
type ClientConfig struct {
	APIKey     string       // Defaults to ANTHROPIC_API_KEY env var
	Model      string       // Defaults to claude-sonnet-4-20250514
	BaseURL    string       // Defaults to https://api.anthropic.com
	MaxTokens  int          // Defaults to 4096
	HTTPClient *http.Client // Defaults to a client without timeout; callers bound each call by context
}

// Client implements ai.Provider using the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	maxTokens  int
	httpClient *http.Client
}

// NewClient creates a new Anthropic client.
func NewClient(cfg ClientConfig) (*Client, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	c := &Client{
		apiKey:     apiKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxTokens:  cfg.MaxTokens,
		httpClient: cfg.HTTPClient,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c, nil
}

// Name implements ai.Provider.
func (c *Client) Name() string { return ai.ProviderAnthropic }

// -- Anthropic API types --

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type apiResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      apiUsage       `json:"usage"`
}

// Complete implements ai.Provider. Text blocks of the reply are concatenated.
func (c *Client) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	body := apiRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    req.SystemPrompt,
	}
	if req.Model != "" {
		body.Model = req.Model
	}
	if req.MaxTokens > 0 {
		body.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		t := req.Temperature
		body.Temperature = &t
	}
	for _, m := range req.Conversation() {
		body.Messages = append(body.Messages, message{Role: m.Role, Content: m.Content})
	}

	resp, err := c.call(ctx, body)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	model := resp.Model
	if model == "" {
		model = body.Model
	}
	return &ai.CompletionResponse{
		ID:           resp.ID,
		Model:        model,
		Text:         text.String(),
		Usage:        ai.TokenUsage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
		FinishReason: resp.StopReason,
	}, nil
}

func (c *Client) call(ctx context.Context, req apiRequest) (*apiResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ai.StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &apiResp, nil
}
