package workpool

import (
	"container/list"
	"context"
	"sync"
)

type taskState int

const (
	taskQueued taskState = iota
	taskRunning
	taskFinished
)

// Task is a handle to a submitted job.
type Task[T any] struct {
	pool *Pool[T]
	job  Job[T]
	done func(T, error)

	ctx    context.Context
	cancel context.CancelFunc

	// Guarded by pool.mu.
	state taskState
	elem  *list.Element

	once     sync.Once
	finished chan struct{}
}

// Cancel cancels the task. A queued task is removed from the queue and
// completes with ErrCanceled; a running task has its context canceled and
// completes with ErrCanceled when the job returns. Canceling a finished
// task does nothing. Cancel is idempotent and never calls the completion
// callback on the caller's stack.
func (t *Task[T]) Cancel() {
	t.cancel()

	p := t.pool
	p.mu.Lock()
	if t.state != taskQueued || t.elem == nil {
		p.mu.Unlock()
		return
	}
	p.queue.Remove(t.elem)
	t.elem = nil
	t.state = taskFinished
	p.mu.Unlock()

	go t.finish(*new(T), ErrCanceled)
}

// Done returns a channel closed after the completion callback returned.
func (t *Task[T]) Done() <-chan struct{} {
	return t.finished
}

// finish runs the completion callback once.
func (t *Task[T]) finish(v T, err error) {
	t.once.Do(func() {
		defer close(t.finished)
		defer t.cancel()
		if t.done != nil {
			t.done(v, err)
		}
	})
}
