package copilotai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/GoCodeAlone/wfgen/ai"
	copilot "github.com/github/copilot-sdk/go"
)

type mockSession struct {
	reply     string
	err       error
	prompt    string
	destroyed bool
}

func (s *mockSession) SendAndWait(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

func (s *mockSession) Destroy() error {
	s.destroyed = true
	return nil
}

type mockClient struct {
	session *mockSession
	cfg     *copilot.SessionConfig
	err     error
}

func (c *mockClient) CreateSession(_ context.Context, cfg *copilot.SessionConfig) (SessionWrapper, error) {
	c.cfg = cfg
	if c.err != nil {
		return nil, c.err
	}
	return c.session, nil
}

func TestNewClient_Defaults(t *testing.T) {
	client, err := NewClient(ClientConfig{})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.wrapper == nil {
		t.Error("expected non-nil wrapper")
	}
	if client.Name() != ai.ProviderCopilot {
		t.Errorf("Name = %q", client.Name())
	}
}

func TestClient_Complete(t *testing.T) {
	sess := &mockSession{reply: `{"trigger":{"type":"manual"}}`}
	mc := &mockClient{session: sess}
	client := &Client{cfg: ClientConfig{Model: "gpt-test"}, wrapper: mc}

	resp, err := client.Complete(context.Background(), ai.CompletionRequest{SystemPrompt: "sys", UserMessage: "plan"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != sess.reply || resp.Model != "gpt-test" {
		t.Errorf("resp = %+v", resp)
	}
	if sess.prompt != "plan" {
		t.Errorf("prompt = %q", sess.prompt)
	}
	if !sess.destroyed {
		t.Error("session not destroyed")
	}
	if mc.cfg.SystemMessage == nil || mc.cfg.SystemMessage.Content != "sys" {
		t.Errorf("system message = %+v", mc.cfg.SystemMessage)
	}
}

func TestClient_CompleteErrors(t *testing.T) {
	client := &Client{wrapper: &mockClient{err: errors.New("cli missing")}}
	if _, err := client.Complete(context.Background(), ai.CompletionRequest{}); err == nil {
		t.Error("expected session error")
	}

	sess := &mockSession{err: errEmptyResponse}
	client = &Client{wrapper: &mockClient{session: sess}}
	if _, err := client.Complete(context.Background(), ai.CompletionRequest{}); !errors.Is(err, errEmptyResponse) {
		t.Errorf("err = %v, want errEmptyResponse", err)
	}
	if !sess.destroyed {
		t.Error("session not destroyed after failure")
	}
}

func TestBuildPromptWithHistory(t *testing.T) {
	got := buildPrompt(ai.CompletionRequest{
		History:     []ai.Message{{Role: ai.RoleAssistant, Content: "prior"}},
		UserMessage: "now",
	})
	if !strings.Contains(got, "[assistant]\nprior") || !strings.HasSuffix(got, "[user]\nnow") {
		t.Errorf("prompt = %q", got)
	}
}
