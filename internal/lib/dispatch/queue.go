// Package dispatch delivers fire-and-forget calls to robot-side collaborators. Jobs run
// one at a time in submission order, each under a short timeout; callers never wait.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	preerrors "github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/ifsp/robotnav/server/internal/lib/naverr"
)

// ErrQueueFull is returned by Submit when the backlog is at capacity
var ErrQueueFull = errors.New("dispatch queue is full")

// ErrStopped is returned by Submit after the queue has shut down
var ErrStopped = errors.New("dispatch queue is stopped")

// Job is a single collaborator call
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue runs submitted jobs sequentially on a background worker
type Queue struct {
	name    string
	timeout time.Duration
	jobs    chan Job

	mu      sync.RWMutex
	stopped bool
	running bool
	done    chan struct{}
}

// NewQueue creates a queue holding up to size pending jobs. Each job gets timeout to
// finish before its context is cancelled.
func NewQueue(name string, size int, timeout time.Duration) *Queue {
	if size <= 0 {
		size = 1
	}
	return &Queue{
		name:    name,
		timeout: timeout,
		jobs:    make(chan Job, size),
		done:    make(chan struct{}),
	}
}

// Start launches the worker. It drains until ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return fmt.Errorf("dispatch queue %s already running", q.name)
	}
	if q.stopped {
		return ErrStopped
	}
	q.running = true

	go q.worker(logging.EnsureLogger(ctx))
	return nil
}

// Submit enqueues a job without blocking. A full or stopped queue returns a
// CollaboratorUnavailable error; the job is dropped.
func (q *Queue) Submit(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.stopped {
		return naverr.Unavailable(q.name, ErrStopped)
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return naverr.Unavailable(q.name, ErrQueueFull)
	}
}

// Pending returns the number of queued jobs
func (q *Queue) Pending() int {
	return len(q.jobs)
}

// Stop closes the queue and waits for the worker to finish the jobs already queued
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	running := q.running
	close(q.jobs)
	q.mu.Unlock()

	if running {
		<-q.done
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer close(q.done)

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			q.run(ctx, job)
		}
	}
}

func (q *Queue) run(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			err, _ := preerrors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Dispatch: recovered from panic",
				"queue", q.name, "job", job.Name,
				"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()

	if err := job.Run(jobCtx); err != nil {
		logging.Warnw(ctx, "Collaborator call failed",
			"queue", q.name, "job", job.Name, "error", naverr.Unavailable(q.name, err))
	}
}
