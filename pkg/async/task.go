// Package async provides one-shot deferred computations that are polled by a
// cooperative loop instead of awaited.
package async

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/gammazero/workerpool"
)

// ErrPending is returned by Result while the task has not completed yet. It is
// not a failure and should simply be retried on the next poll.
var ErrPending = errors.New("async: result pending")

// DeferredError wraps the failure of a task's work.
type DeferredError struct {
	Cause error
}

func (e *DeferredError) Error() string {
	return fmt.Sprintf("deferred failure: %v", e.Cause)
}

func (e *DeferredError) Unwrap() error {
	return e.Cause
}

// Executor runs submitted work on some background execution context.
type Executor interface {
	Submit(func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(func())

func (f ExecutorFunc) Submit(work func()) { f(work) }

// Goroutines runs every task on its own goroutine.
var Goroutines Executor = ExecutorFunc(func(work func()) { go work() })

// Pool is a bounded executor backed by a worker pool.
type Pool struct {
	wp *workerpool.WorkerPool
}

func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{wp: workerpool.New(workers)}
}

func (p *Pool) Submit(work func()) {
	p.wp.Submit(work)
}

// Stop waits for queued tasks to finish and releases the workers.
func (p *Pool) Stop() {
	p.wp.StopWait()
}

// Task is a handle to background work. It goes from pending to done exactly
// once and never changes afterwards.
type Task[T any] struct {
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

// Submit starts work on exec immediately and returns its handle. The context
// passed to work is ctx; cancelling it is the only way to abandon the work.
func Submit[T any](ctx context.Context, exec Executor, work func(ctx context.Context) (T, error)) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	exec.Submit(func() {
		var (
			value T
			err   error
		)
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			t.complete(value, err)
		}()
		value, err = work(ctx)
	})
	return t
}

// Go is Submit on a fresh goroutine.
func Go[T any](ctx context.Context, work func(ctx context.Context) (T, error)) *Task[T] {
	return Submit(ctx, Goroutines, work)
}

// Completed returns a task that is already done with value.
func Completed[T any](value T) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	t.complete(value, nil)
	return t
}

// Failed returns a task that is already done with err.
func Failed[T any](err error) *Task[T] {
	t := &Task[T]{done: make(chan struct{})}
	var zero T
	t.complete(zero, err)
	return t
}

func (t *Task[T]) complete(value T, err error) {
	t.once.Do(func() {
		t.value = value
		if err != nil {
			t.err = &DeferredError{Cause: err}
		}
		close(t.done)
	})
}

// Done reports whether the task has completed. It never blocks.
func (t *Task[T]) Done() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome without blocking, or ErrPending.
func (t *Task[T]) Result() (T, error) {
	if !t.Done() {
		var zero T
		return zero, ErrPending
	}
	return t.value, t.err
}

// Get blocks until the task is done and returns its outcome. Failures are
// reported as *DeferredError.
func (t *Task[T]) Get() (T, error) {
	<-t.done
	return t.value, t.err
}

// Wait is Get with a bound on how long the caller waits. Cancelling ctx does
// not cancel the work.
func (t *Task[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// DoneChan exposes completion for select statements.
func (t *Task[T]) DoneChan() <-chan struct{} {
	return t.done
}
