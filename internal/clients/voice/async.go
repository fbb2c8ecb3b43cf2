package voice

import (
	"context"

	"github.com/ifsp/robotnav/server/internal/lib/dispatch"
)

// Async queues announcements so callers never wait on the speaker
type Async struct {
	inner Announcer
	queue *dispatch.Queue
}

// NewAsync creates an asynchronous announcer backed by queue
func NewAsync(inner Announcer, queue *dispatch.Queue) *Async {
	return &Async{inner: inner, queue: queue}
}

func (a *Async) Announce(_ context.Context, text string) error {
	return a.queue.Submit(dispatch.Job{Name: "announce", Run: func(ctx context.Context) error {
		return a.inner.Announce(ctx, text)
	}})
}
