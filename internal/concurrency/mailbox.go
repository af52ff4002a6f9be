// File: internal/concurrency/mailbox.go
// Package concurrency
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Mailbox is a multi-producer, single-consumer FIFO used by worker goroutines
// to hand control messages back to the reactor. Producers never block; the
// consumer is woken through the supplied wake hook when the box goes from
// empty to non-empty.

package concurrency

import (
	"sync"

	"github.com/eapache/queue"
)

// Mailbox is an unbounded FIFO of T.
type Mailbox[T any] struct {
	mu     sync.Mutex
	q      *queue.Queue
	wake   func() error
	closed bool
}

// NewMailbox returns an empty mailbox. wake may be nil.
func NewMailbox[T any](wake func() error) *Mailbox[T] {
	return &Mailbox[T]{q: queue.New(), wake: wake}
}

// Post appends msg. It returns false if the mailbox has been closed.
func (m *Mailbox[T]) Post(msg T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	wasEmpty := m.q.Length() == 0
	m.q.Add(msg)
	m.mu.Unlock()
	if wasEmpty && m.wake != nil {
		_ = m.wake()
	}
	return true
}

// Len returns the number of pending messages.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.Length()
}

// Drain removes every pending message in FIFO order and passes each to fn
// outside the lock. Messages posted by fn are handled in the same call.
// It returns the number of messages handled.
func (m *Mailbox[T]) Drain(fn func(T)) int {
	n := 0
	for {
		m.mu.Lock()
		if m.q.Length() == 0 {
			m.mu.Unlock()
			return n
		}
		msg := m.q.Remove().(T)
		m.mu.Unlock()
		fn(msg)
		n++
	}
}

// Close rejects further posts. Pending messages can still be drained.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}
