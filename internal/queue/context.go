package queue

import (
	"context"
	"errors"
)

// ErrNoProvider is the panic value of MustFromContext when no queue was
// attached to the context. It indicates a wiring bug.
var ErrNoProvider = errors.New("notification queue used outside provider")

type contextKey struct{}

// NewContext returns a copy of ctx carrying q.
func NewContext(ctx context.Context, q *Queue) context.Context {
	return context.WithValue(ctx, contextKey{}, q)
}

// FromContext returns the queue attached to ctx, if any.
func FromContext(ctx context.Context) (*Queue, bool) {
	q, ok := ctx.Value(contextKey{}).(*Queue)
	return q, ok && q != nil
}

// MustFromContext returns the queue attached to ctx and panics with
// ErrNoProvider if there is none.
func MustFromContext(ctx context.Context) *Queue {
	q, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoProvider)
	}
	return q
}
