package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/GoCodeAlone/wfgen/ai"
)

var _ ai.Provider = (*Provider)(nil)

func TestScriptedReplies(t *testing.T) {
	boom := errors.New("boom")
	p := New(Reply{Text: "one"}, Reply{Err: boom})
	ctx := context.Background()

	resp, err := p.Complete(ctx, ai.CompletionRequest{UserMessage: "a"})
	if err != nil || resp.Text != "one" || resp.ID != "mock-1" {
		t.Fatalf("first = %+v, %v", resp, err)
	}
	if _, err := p.Complete(ctx, ai.CompletionRequest{UserMessage: "b"}); !errors.Is(err, boom) {
		t.Errorf("second err = %v, want boom", err)
	}
	if _, err := p.Complete(ctx, ai.CompletionRequest{}); !errors.Is(err, ErrScriptExhausted) {
		t.Errorf("third err = %v, want ErrScriptExhausted", err)
	}
	calls := p.Calls()
	if len(calls) != 3 || calls[1].UserMessage != "b" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestResponderAfterScript(t *testing.T) {
	p := Texts("scripted")
	p.responder = func(req ai.CompletionRequest) (string, error) { return "echo " + req.UserMessage, nil }
	ctx := context.Background()
	_, _ = p.Complete(ctx, ai.CompletionRequest{})
	resp, err := p.Complete(ctx, ai.CompletionRequest{UserMessage: "x"})
	if err != nil || resp.Text != "echo x" {
		t.Errorf("resp = %+v, err = %v", resp, err)
	}
}

func TestCancelledContext(t *testing.T) {
	p := Texts("never")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Complete(ctx, ai.CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
	if p.CallCount() != 0 {
		t.Error("cancelled call was recorded")
	}
}
