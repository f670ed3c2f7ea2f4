// Package workpool runs blocking jobs on a fixed number of goroutines.
//
// Jobs wait in a FIFO queue until a worker is free. Every submitted job
// yields a [Task] whose completion callback runs exactly once, whether the
// job finished, failed, or was canceled before or while running.
package workpool

import (
	"container/list"
	"context"
	"errors"
	"runtime"
	"sync"
)

// ErrCanceled is passed to the completion callback of a canceled task.
var ErrCanceled = errors.New("workpool: task canceled")

// Job is the unit of work. It must return promptly once ctx is done.
type Job[T any] func(ctx context.Context) (T, error)

// Pool is a bounded pool of workers consuming a FIFO queue.
//
// Thread safety: Pool is safe for concurrent use.
type Pool[T any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	// queue holds *Task[T] in submission order.
	queue list.List

	// running holds tasks currently executing on a worker.
	running map[*Task[T]]struct{}

	workers int
	closed  bool

	// base is canceled by Close and parents every task context.
	base       context.Context
	cancelBase context.CancelFunc

	// jobs counts job functions currently executing. Completion
	// callbacks are not counted so Close can run inside one.
	jobs sync.WaitGroup
}

// New creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
// The pool starts immediately.
func New[T any](workers int) *Pool[T] {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := &Pool[T]{
		running: make(map[*Task[T]]struct{}),
		workers: workers,
	}
	p.cond = sync.NewCond(&p.mu)
	p.base, p.cancelBase = context.WithCancel(context.Background())

	for range workers {
		go p.worker()
	}
	return p
}

// worker is the main loop for each worker goroutine.
func (p *Pool[T]) worker() {
	for {
		p.mu.Lock()
		for p.queue.Len() == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		t := p.queue.Remove(p.queue.Front()).(*Task[T])
		t.elem = nil
		t.state = taskRunning
		p.running[t] = struct{}{}
		p.jobs.Add(1)
		p.mu.Unlock()

		v, err := t.job(t.ctx)
		if t.ctx.Err() != nil {
			err = ErrCanceled
		}

		p.mu.Lock()
		delete(p.running, t)
		t.state = taskFinished
		p.mu.Unlock()
		p.jobs.Done()

		t.finish(v, err)
	}
}

// Submit queues job and returns its task. done is called exactly once with
// the job result, or with ErrCanceled if the task is canceled or the pool
// closes first. done never runs on the submitting goroutine's stack.
//
// A task canceled while running still passes the job's value to done, so
// the callback can release whatever the job produced.
//
// Submitting to a closed pool returns a task that completes with ErrCanceled.
func (p *Pool[T]) Submit(job Job[T], done func(T, error)) *Task[T] {
	t := &Task[T]{
		pool:     p,
		job:      job,
		done:     done,
		finished: make(chan struct{}),
	}

	p.mu.Lock()
	t.ctx, t.cancel = context.WithCancel(p.base)
	if p.closed {
		t.state = taskFinished
		p.mu.Unlock()
		t.cancel()
		go t.finish(*new(T), ErrCanceled)
		return t
	}
	t.elem = p.queue.PushBack(t)
	p.cond.Signal()
	p.mu.Unlock()

	return t
}

// Close stops accepting work, cancels every queued and running task and
// waits for running jobs to return. Running jobs are expected to observe
// their context. Completion callbacks may still be running when Close
// returns, and a callback may call Close itself. Workers exit once their
// current callback returns. Close is safe to call multiple times.
func (p *Pool[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true

	var dropped []*Task[T]
	for e := p.queue.Front(); e != nil; e = e.Next() {
		t := e.Value.(*Task[T])
		t.elem = nil
		t.state = taskFinished
		dropped = append(dropped, t)
	}
	p.queue.Init()
	p.cond.Broadcast()
	p.mu.Unlock()

	p.cancelBase()
	for _, t := range dropped {
		go t.finish(*new(T), ErrCanceled)
	}

	p.jobs.Wait()
}

// Workers returns the number of workers in the pool.
func (p *Pool[T]) Workers() int {
	return p.workers
}

// Queued returns the number of tasks waiting for a worker.
func (p *Pool[T]) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Len()
}

// Running returns the number of tasks currently executing.
func (p *Pool[T]) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

// IsRunning reports whether the pool still accepts work.
func (p *Pool[T]) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}
