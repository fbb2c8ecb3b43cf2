package robot

import (
	"context"

	"github.com/ifsp/robotnav/server/internal/lib/dispatch"
	"github.com/ifsp/robotnav/server/internal/lib/routing"
)

// Async wraps an Executor so every call is queued and returns immediately. Calls reach
// the robot in the order they were made.
type Async struct {
	inner Executor
	queue *dispatch.Queue
}

// NewAsync creates an asynchronous executor backed by queue
func NewAsync(inner Executor, queue *dispatch.Queue) *Async {
	return &Async{inner: inner, queue: queue}
}

func (a *Async) ReplaceProgram(_ context.Context, commands []routing.Command) error {
	return a.queue.Submit(dispatch.Job{Name: "replace_program", Run: func(ctx context.Context) error {
		return a.inner.ReplaceProgram(ctx, commands)
	}})
}

func (a *Async) Stop(_ context.Context) error {
	return a.queue.Submit(dispatch.Job{Name: "stop", Run: a.inner.Stop})
}

func (a *Async) SetSpeed(_ context.Context, speed int) error {
	return a.queue.Submit(dispatch.Job{Name: "set_speed", Run: func(ctx context.Context) error {
		return a.inner.SetSpeed(ctx, speed)
	}})
}
