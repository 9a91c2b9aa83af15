package ai

import "context"

// Well-known provider names. ProviderAuto asks Select to pick the first
// configured backend.
const (
	ProviderAuto      = "auto"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderCopilot   = "copilot"
	ProviderOllama    = "ollama"
)

// Provider is a text-completion backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Name returns the provider's identifier (e.g., "anthropic", "openai").
	Name() string

	// Complete sends a single completion request and returns the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// CompletionRequest is the input for a non-streaming completion call.
type CompletionRequest struct {
	Model        string         `json:"model,omitempty"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
	UserMessage  string         `json:"userMessage"`
	History      []Message      `json:"conversationHistory"`
	MaxTokens    int            `json:"maxTokens,omitempty"`
	Temperature  float64        `json:"temperature,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Conversation returns the history followed by the user message.
func (r CompletionRequest) Conversation() []Message {
	msgs := make([]Message, 0, len(r.History)+1)
	msgs = append(msgs, r.History...)
	return append(msgs, Message{Role: RoleUser, Content: r.UserMessage})
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse is the output of a completion call.
type CompletionResponse struct {
	ID           string     `json:"id"`
	Model        string     `json:"model"`
	Text         string     `json:"text"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finishReason,omitempty"`
}

// TokenUsage tracks input and output token counts.
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}
