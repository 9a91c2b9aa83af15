// Package mock provides a scripted completion provider for tests and for
// offline runs of the generator.
package mock

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/GoCodeAlone/wfgen/ai"
)

// Name is the provider name reported by Provider.
const Name = "mock"

// ErrScriptExhausted is returned once every scripted reply has been used and
// no responder is set.
var ErrScriptExhausted = errors.New("mock: no scripted reply left")

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// Responder computes a reply from the request.
type Responder func(req ai.CompletionRequest) (string, error)

// Provider implements ai.Provider by replaying scripted replies in order,
// then falling back to its Responder. It records every request.
type Provider struct {
	mu        sync.Mutex
	replies   []Reply
	responder Responder
	calls     []ai.CompletionRequest
}

// New returns a Provider that answers with replies in order.
func New(replies ...Reply) *Provider {
	return &Provider{replies: replies}
}

// Texts returns a Provider that answers with the given texts in order.
func Texts(texts ...string) *Provider {
	p := &Provider{}
	for _, t := range texts {
		p.replies = append(p.replies, Reply{Text: t})
	}
	return p
}

// Func returns a Provider that answers every request with fn.
func Func(fn Responder) *Provider {
	return &Provider{responder: fn}
}

// Failing returns a Provider whose every call fails with err.
func Failing(err error) *Provider {
	return Func(func(ai.CompletionRequest) (string, error) { return "", err })
}

// Name implements ai.Provider.
func (p *Provider) Name() string { return Name }

// Complete implements ai.Provider.
func (p *Provider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.calls = append(p.calls, req)
	n := len(p.calls)
	var reply Reply
	switch {
	case len(p.replies) > 0:
		reply, p.replies = p.replies[0], p.replies[1:]
	case p.responder != nil:
		reply.Text, reply.Err = p.responder(req)
	default:
		reply.Err = ErrScriptExhausted
	}
	p.mu.Unlock()

	if reply.Err != nil {
		return nil, reply.Err
	}
	return &ai.CompletionResponse{
		ID:           "mock-" + strconv.Itoa(n),
		Model:        Name,
		Text:         reply.Text,
		FinishReason: "stop",
		Usage:        ai.TokenUsage{InputTokens: len(req.UserMessage) / 4, OutputTokens: len(reply.Text) / 4},
	}, nil
}

// Calls returns a copy of the requests received so far.
func (p *Provider) Calls() []ai.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ai.CompletionRequest(nil), p.calls...)
}

// CallCount returns the number of requests received.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
