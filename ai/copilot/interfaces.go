package copilotai

import (
	"context"
	"errors"

	copilot "github.com/github/copilot-sdk/go"
)

// SessionWrapper is the part of a copilot.Session this package uses, reduced
// to plain text so it can be mocked.
type SessionWrapper interface {
	SendAndWait(ctx context.Context, prompt string) (string, error)
	Destroy() error
}

// ClientWrapper creates sessions; it wraps copilot.Client so it can be mocked.
type ClientWrapper interface {
	CreateSession(ctx context.Context, cfg *copilot.SessionConfig) (SessionWrapper, error)
}

var errEmptyResponse = errors.New("empty response from Copilot")

type realClientWrapper struct {
	cli *copilot.Client
}

func (w *realClientWrapper) CreateSession(ctx context.Context, cfg *copilot.SessionConfig) (SessionWrapper, error) {
	sess, err := w.cli.CreateSession(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &realSessionWrapper{sess: sess}, nil
}

type realSessionWrapper struct {
	sess *copilot.Session
}

func (w *realSessionWrapper) SendAndWait(ctx context.Context, prompt string) (string, error) {
	resp, err := w.sess.SendAndWait(ctx, copilot.MessageOptions{Prompt: prompt})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Data.Content == nil {
		return "", errEmptyResponse
	}
	return *resp.Data.Content, nil
}

func (w *realSessionWrapper) Destroy() error {
	return w.sess.Destroy()
}
