// File: internal/bytequeue/queue.go
// Package bytequeue
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Queue is a growable FIFO of bytes used as both a write queue and a scan
// target. Appends go to the tail, consumed bytes are dropped from the head.
// The readable region is always contiguous so decoders can scan it in place.

package bytequeue

import "bytes"

// compactThreshold is the minimum dead prefix before Append slides data down.
const compactThreshold = 4096

// Queue is not safe for concurrent use.
type Queue struct {
	buf  []byte
	head int
}

// New returns a queue with capacity preallocated.
func New(capacity int) *Queue {
	return &Queue{buf: make([]byte, 0, capacity)}
}

// Len returns the number of unconsumed bytes.
func (q *Queue) Len() int {
	return len(q.buf) - q.head
}

// Bytes returns the unconsumed bytes. The slice aliases the queue and is
// valid until the next mutating call.
func (q *Queue) Bytes() []byte {
	return q.buf[q.head:]
}

// Append adds p to the tail in amortized O(1).
func (q *Queue) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	q.compact(len(p))
	q.buf = append(q.buf, p...)
}

// AppendString adds s to the tail.
func (q *Queue) AppendString(s string) {
	if s == "" {
		return
	}
	q.compact(len(s))
	q.buf = append(q.buf, s...)
}

// Write implements io.Writer. It never fails.
func (q *Queue) Write(p []byte) (int, error) {
	q.Append(p)
	return len(p), nil
}

// IndexByte returns the offset of the first c in the unconsumed bytes, or -1.
func (q *Queue) IndexByte(c byte) int {
	return bytes.IndexByte(q.Bytes(), c)
}

// Index returns the offset of the first occurrence of sep, or -1.
func (q *Queue) Index(sep []byte) int {
	return bytes.Index(q.Bytes(), sep)
}

// Drain drops the first n unconsumed bytes. n larger than Len empties the queue.
func (q *Queue) Drain(n int) {
	if n <= 0 {
		return
	}
	if n >= q.Len() {
		q.Reset()
		return
	}
	q.head += n
}

// Pop removes and returns a copy of the first n bytes.
func (q *Queue) Pop(n int) []byte {
	if n > q.Len() {
		n = q.Len()
	}
	out := make([]byte, n)
	copy(out, q.buf[q.head:q.head+n])
	q.Drain(n)
	return out
}

// Reset empties the queue, keeping the allocation.
func (q *Queue) Reset() {
	q.buf = q.buf[:0]
	q.head = 0
}

// compact slides live bytes to the front when the dead prefix dominates and
// the append would otherwise grow the backing array.
func (q *Queue) compact(incoming int) {
	if q.head == 0 {
		return
	}
	fits := len(q.buf)+incoming <= cap(q.buf)
	if fits && (q.head < compactThreshold || q.head < q.Len()) {
		return
	}
	n := copy(q.buf, q.buf[q.head:])
	q.buf = q.buf[:n]
	q.head = 0
}
