// File: fake/stream.go
// Package fake
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scripted api.Stream.

package fake

import (
	"bytes"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-chat/api"
)

var nextFd atomic.Int64

func init() { nextFd.Store(100) }

// Stream is a fake implementation of api.Stream. Reads return scripted
// chunks, then ReadErr (api.ErrWouldBlock by default). Writes are captured,
// at most WriteChunk bytes per call when WriteChunk > 0.
type Stream struct {
	mu         sync.Mutex
	fd         int
	reads      [][]byte
	interrupts int
	readErr    error
	written    bytes.Buffer
	writeChunk int
	blockNext  int
	writeErr   error
	closed     bool

	// ReadDelay stretches every Read so overlapping callers would be visible.
	ReadDelay time.Duration

	readCalls  atomic.Int64
	writeCalls atomic.Int64
	closeCount atomic.Int64
	active     atomic.Int32
	maxActive  atomic.Int32
}

var _ api.Stream = (*Stream)(nil)

// NewStream creates a stream with a fresh descriptor number.
func NewStream() *Stream {
	return &Stream{fd: int(nextFd.Add(1)), readErr: api.ErrWouldBlock}
}

// Feed queues p to be returned by a future Read.
func (s *Stream) Feed(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads = append(s.reads, append([]byte(nil), p...))
}

// FeedString queues s to be returned by a future Read.
func (s *Stream) FeedString(str string) { s.Feed([]byte(str)) }

// SetReadError sets the error returned once scripted reads are exhausted.
func (s *Stream) SetReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// InterruptReads makes the next n Read calls fail with api.ErrInterrupted.
func (s *Stream) InterruptReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupts = n
}

// SetWriteChunk caps the bytes accepted per Write call.
func (s *Stream) SetWriteChunk(k int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeChunk = k
}

// BlockWrites makes the next n Write calls fail with api.ErrWouldBlock.
func (s *Stream) BlockWrites(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blockNext = n
}

// SetWriteError makes every Write fail with err.
func (s *Stream) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

func (s *Stream) enter() {
	n := s.active.Add(1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			return
		}
	}
}

func (s *Stream) exit() { s.active.Add(-1) }

// Read implements api.Stream.Read.
func (s *Stream) Read(p []byte) (int, error) {
	s.enter()
	defer s.exit()
	s.readCalls.Add(1)
	if s.ReadDelay > 0 {
		time.Sleep(s.ReadDelay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, api.ErrClosed
	}
	if s.interrupts > 0 {
		s.interrupts--
		return 0, api.ErrInterrupted
	}
	if len(s.reads) == 0 {
		return 0, s.readErr
	}
	n := copy(p, s.reads[0])
	if n == len(s.reads[0]) {
		s.reads = s.reads[1:]
	} else {
		s.reads[0] = s.reads[0][n:]
	}
	return n, nil
}

// Write implements api.Stream.Write.
func (s *Stream) Write(p []byte) (int, error) {
	s.enter()
	defer s.exit()
	s.writeCalls.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, api.ErrClosed
	}
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	if s.blockNext > 0 {
		s.blockNext--
		return 0, api.ErrWouldBlock
	}
	n := len(p)
	if s.writeChunk > 0 && n > s.writeChunk {
		n = s.writeChunk
	}
	s.written.Write(p[:n])
	return n, nil
}

// Close implements api.Stream.Close.
func (s *Stream) Close() error {
	s.closeCount.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Fd implements api.Stream.Fd.
func (s *Stream) Fd() int { return s.fd }

// RemoteAddr implements api.Stream.RemoteAddr.
func (s *Stream) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000 + s.fd}
}

// Written returns a copy of everything written so far.
func (s *Stream) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.written.Bytes()...)
}

// TakeWritten returns and clears the captured output.
func (s *Stream) TakeWritten() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]byte(nil), s.written.Bytes()...)
	s.written.Reset()
	return out
}

// ReadCalls returns the number of Read calls.
func (s *Stream) ReadCalls() int { return int(s.readCalls.Load()) }

// WriteCalls returns the number of Write calls.
func (s *Stream) WriteCalls() int { return int(s.writeCalls.Load()) }

// CloseCount returns the number of Close calls.
func (s *Stream) CloseCount() int { return int(s.closeCount.Load()) }

// MaxConcurrent returns the highest number of overlapping Read/Write calls.
func (s *Stream) MaxConcurrent() int { return int(s.maxActive.Load()) }

// Closed reports whether Close was called.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
