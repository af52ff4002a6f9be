// File: fake/listener.go
// Package fake
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Queue-backed api.Listener.

package fake

import (
	"net"
	"sync"

	"github.com/momentics/hioload-chat/api"
)

// Listener hands out queued streams, then api.ErrWouldBlock.
type Listener struct {
	mu       sync.Mutex
	queue    []api.Stream
	failNext error
	closed   bool
}

var _ api.Listener = (*Listener)(nil)

// ListenerFd is the descriptor every fake listener reports.
const ListenerFd = 3

// NewListener creates an empty listener.
func NewListener() *Listener { return &Listener{} }

// Push queues s for Accept.
func (l *Listener) Push(s api.Stream) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = append(l.queue, s)
}

// FailNext makes the next Accept return err.
func (l *Listener) FailNext(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext = err
}

// Accept implements api.Listener.Accept.
func (l *Listener) Accept() (api.Stream, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, api.ErrClosed
	}
	if err := l.failNext; err != nil {
		l.failNext = nil
		return nil, err
	}
	if len(l.queue) == 0 {
		return nil, api.ErrWouldBlock
	}
	s := l.queue[0]
	l.queue = l.queue[1:]
	return s, nil
}

// Close implements api.Listener.Close.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

// Closed reports whether Close was called.
func (l *Listener) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Fd implements api.Listener.Fd.
func (l *Listener) Fd() int { return ListenerFd }

// Addr implements api.Listener.Addr.
func (l *Listener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9001}
}
