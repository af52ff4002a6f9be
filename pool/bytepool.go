// File: pool/bytepool.go
// Package pool
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// BytePool recycles fixed-size read buffers. A connection only needs its read
// buffer while a handler job runs, so buffers are borrowed per job instead of
// being owned per connection.

package pool

import (
	"sync"
	"sync/atomic"
)

// BytePool hands out byte slices of one fixed size. Safe for concurrent use.
type BytePool struct {
	size int
	p    sync.Pool

	gets   atomic.Int64
	puts   atomic.Int64
	allocs atomic.Int64
}

// NewBytePool creates a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	b := &BytePool{size: size}
	b.p.New = func() any {
		b.allocs.Add(1)
		buf := make([]byte, size)
		return &buf
	}
	return b
}

// Size returns the buffer length.
func (b *BytePool) Size() int { return b.size }

// Get returns a buffer of Size bytes. Contents are unspecified.
func (b *BytePool) Get() []byte {
	b.gets.Add(1)
	return *(b.p.Get().(*[]byte))
}

// Put returns buf to the pool. Buffers of a foreign capacity are dropped.
func (b *BytePool) Put(buf []byte) {
	if cap(buf) != b.size {
		return
	}
	b.puts.Add(1)
	buf = buf[:b.size]
	b.p.Put(&buf)
}

// Stats returns counters for the debug endpoint.
func (b *BytePool) Stats() map[string]int64 {
	return map[string]int64{
		"size":   int64(b.size),
		"gets":   b.gets.Load(),
		"puts":   b.puts.Load(),
		"allocs": b.allocs.Load(),
	}
}
