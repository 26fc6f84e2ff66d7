package queue

import (
	"context"

	"github.com/jmylchreest/overlay/internal/model"
)

// Messages describes the text shown while an operation runs and after it
// settles. Success and Error may be nil, in which case the Loading text is
// kept.
type Messages[T any] struct {
	Loading string
	Success func(T) string
	Error   func(error) string
}

// Result is the outcome of an operation wrapped by Promise.
type Result[T any] struct {
	Value T
	Err   error
}

// Promise adds a loading notification, runs fn in a new goroutine and, once
// fn returns, converts the notification to success or error with a single
// Update. It returns the notification id and a channel that receives the
// result after the update has been applied.
//
// If fn never returns the loading notification stays until dismissed.
func Promise[T any](ctx context.Context, q *Queue, msgs Messages[T], fn func(context.Context) (T, error)) (string, <-chan Result[T]) {
	id := q.Add(model.Notification{
		Message:     msgs.Loading,
		Type:        model.TypeLoading,
		Dismissible: true,
	})

	done := make(chan Result[T], 1)
	go func() {
		value, err := fn(ctx)

		patch := model.Patch{}
		if err != nil {
			patch.Type = model.Ref(model.TypeError)
			if msgs.Error != nil {
				patch.Message = model.Ref(msgs.Error(err))
			}
		} else {
			patch.Type = model.Ref(model.TypeSuccess)
			if msgs.Success != nil {
				patch.Message = model.Ref(msgs.Success(value))
			}
		}
		q.Update(id, patch)

		done <- Result[T]{Value: value, Err: err}
		close(done)
	}()

	return id, done
}
