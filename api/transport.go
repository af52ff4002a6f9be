// File: api/transport.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Defines the non-blocking socket abstractions the reactor drives.

package api

import "net"

// Stream abstracts a non-blocking, full-duplex byte stream.
//
// Read and Write never block. They report ErrWouldBlock when the socket
// cannot make progress and ErrInterrupted when the call should be retried.
// Read returns io.EOF on end of stream.
type Stream interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	// Fd returns the OS-level descriptor used for poller registration.
	Fd() int
	RemoteAddr() net.Addr
}

// Listener accepts non-blocking streams.
type Listener interface {
	// Accept returns the next pending stream or ErrWouldBlock when the
	// accept queue is drained.
	Accept() (Stream, error)
	Close() error
	Fd() int
	Addr() net.Addr
}
