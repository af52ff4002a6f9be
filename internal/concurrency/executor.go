// File: internal/concurrency/executor.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor dispatches tasks across a fixed set of worker goroutines fed by a
// bounded queue. Submit never blocks the caller: the reactor goroutine must stay
// responsive, so a full queue is reported back as ErrExecutorSaturated.

package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/momentics/hioload-chat/api"
	"github.com/rs/zerolog"
)

// TaskFunc is a unit of work to execute.
type TaskFunc func()

// Executor manages a pool of worker goroutines.
type Executor struct {
	queue      chan TaskFunc
	closeCh    chan struct{}
	closed     atomic.Bool
	numWorkers int
	wg         sync.WaitGroup
	mu         sync.RWMutex // serializes Submit against Close
	logger     zerolog.Logger

	// statistics
	totalTasks     atomic.Int64
	completedTasks atomic.Int64
	rejectedTasks  atomic.Int64
	panics         atomic.Int64
}

var _ api.Executor = (*Executor)(nil)

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger used to report recovered panics.
func WithExecutorLogger(l zerolog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// NewExecutor creates an Executor with numWorkers goroutines and a queue of
// queueSize pending tasks. numWorkers <= 0 defaults to runtime.NumCPU();
// queueSize <= 0 defaults to numWorkers*64.
func NewExecutor(numWorkers, queueSize int, opts ...ExecutorOption) *Executor {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if queueSize <= 0 {
		queueSize = numWorkers * 64
	}
	e := &Executor{
		queue:      make(chan TaskFunc, queueSize),
		closeCh:    make(chan struct{}),
		numWorkers: numWorkers,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go e.worker(i)
	}
	return e
}

// Submit enqueues a task for execution. It returns ErrExecutorClosed after
// Close and ErrExecutorSaturated when the queue is full.
func (e *Executor) Submit(task func()) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed.Load() {
		return ErrExecutorClosed
	}
	select {
	case e.queue <- task:
		e.totalTasks.Add(1)
		return nil
	default:
		e.rejectedTasks.Add(1)
		return ErrExecutorSaturated
	}
}

// NumWorkers returns the number of worker goroutines.
func (e *Executor) NumWorkers() int {
	return e.numWorkers
}

// Close stops accepting tasks, lets workers finish what is already queued and
// waits for them to exit. It is safe to call more than once.
func (e *Executor) Close() {
	e.mu.Lock()
	if e.closed.Swap(true) {
		e.mu.Unlock()
		e.wg.Wait()
		return
	}
	close(e.queue)
	e.mu.Unlock()
	e.wg.Wait()
	close(e.closeCh)
}

// Done is closed once every worker has exited.
func (e *Executor) Done() <-chan struct{} {
	return e.closeCh
}

// Stats returns basic executor metrics.
func (e *Executor) Stats() map[string]int64 {
	total := e.totalTasks.Load()
	completed := e.completedTasks.Load()
	return map[string]int64{
		"total_tasks":     total,
		"completed_tasks": completed,
		"pending_tasks":   total - completed,
		"rejected_tasks":  e.rejectedTasks.Load(),
		"panics":          e.panics.Load(),
		"num_workers":     int64(e.numWorkers),
	}
}

func (e *Executor) worker(id int) {
	defer e.wg.Done()
	for task := range e.queue {
		e.executeTask(id, task)
	}
}

// executeTask runs the task and updates statistics, recovering from panics.
func (e *Executor) executeTask(id int, task TaskFunc) {
	defer func() {
		if r := recover(); r != nil {
			e.panics.Add(1)
			e.logger.Error().
				Int("worker", id).
				Interface("panic", r).
				Msg("task panicked")
		}
		e.completedTasks.Add(1)
	}()
	task()
}
