package api

import (
	"context"
)

type contextKey int

const (
	contextKeySubject contextKey = iota
)

// SetSubject returns a new context carrying the authenticated token subject.
func SetSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, contextKeySubject, sub)
}

// SubjectFromContext returns the authenticated token subject, or "".
func SubjectFromContext(ctx context.Context) string {
	s, _ := ctx.Value(contextKeySubject).(string)
	return s
}
