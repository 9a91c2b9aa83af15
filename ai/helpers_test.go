package ai

import (
	"context"
	"sync"
)

// stubProvider answers each call with fn(callNumber), where callNumber is 1-based.
type stubProvider struct {
	name string
	fn   func(ctx context.Context, n int) (*CompletionResponse, error)

	mu    sync.Mutex
	calls int
	last  CompletionRequest
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.last = req
	s.mu.Unlock()
	return s.fn(ctx, n)
}

func (s *stubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func textResponse(text string) *CompletionResponse {
	return &CompletionResponse{ID: "resp", Model: "stub", Text: text}
}
