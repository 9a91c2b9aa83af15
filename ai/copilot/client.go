// Package copilotai implements ai.Provider on the GitHub Copilot SDK.
package copilotai

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoCodeAlone/wfgen/ai"
	copilot "github.com/github/copilot-sdk/go"
	"github.com/google/uuid"
)

// ClientConfig holds configuration for the Copilot SDK client.
type ClientConfig struct {
	// CLIPath is the path to the Copilot CLI binary. Defaults to "copilot".
	CLIPath string
	// Model to use for sessions. Empty lets Copilot choose.
	Model string
}

// Client implements ai.Provider. Each completion runs in its own session.
type Client struct {
	cfg     ClientConfig
	wrapper ClientWrapper
}

// NewClient creates a new Copilot SDK client. The Copilot CLI is started
// lazily by the SDK on first use.
func NewClient(cfg ClientConfig) (*Client, error) {
	cliPath := cfg.CLIPath
	if cliPath == "" {
		cliPath = "copilot"
	}
	cli := copilot.NewClient(&copilot.ClientOptions{CLIPath: cliPath})
	return &Client{cfg: cfg, wrapper: &realClientWrapper{cli: cli}}, nil
}

// Name implements ai.Provider.
func (c *Client) Name() string { return ai.ProviderCopilot }

// Complete implements ai.Provider.
func (c *Client) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	sc := &copilot.SessionConfig{Model: model}
	if req.SystemPrompt != "" {
		sc.SystemMessage = &copilot.SystemMessageConfig{Mode: "append", Content: req.SystemPrompt}
	}
	session, err := c.wrapper.CreateSession(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Copilot session: %w", err)
	}
	defer func() { _ = session.Destroy() }()

	text, err := session.SendAndWait(ctx, buildPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("Copilot request failed: %w", err)
	}
	return &ai.CompletionResponse{ID: uuid.NewString(), Model: model, Text: text}, nil
}

// buildPrompt flattens prior turns into the prompt; a session carries no
// history of its own.
func buildPrompt(req ai.CompletionRequest) string {
	if len(req.History) == 0 {
		return req.UserMessage
	}
	var b strings.Builder
	for _, m := range req.History {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "[%s]\n%s", ai.RoleUser, req.UserMessage)
	return b.String()
}
