// File: benchmarks/performance_test.go
// Package benchmarks
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Performance benchmarks for hioload-chat components.

package benchmarks

import (
	"bytes"
	"testing"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/fake"
	"github.com/momentics/hioload-chat/internal/bytequeue"
	"github.com/momentics/hioload-chat/internal/concurrency"
	"github.com/momentics/hioload-chat/internal/session"
	"github.com/momentics/hioload-chat/protocol"
)

// BenchmarkFrameEncode measures server-side frame encoding.
func BenchmarkFrameEncode(b *testing.B) {
	f := protocol.NewFrame(protocol.OpcodeText, bytes.Repeat([]byte{'a'}, 512))
	buf := make([]byte, 0, protocol.EncodedLen(f))
	b.SetBytes(int64(len(f.Payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf = protocol.AppendFrame(buf[:0], f)
	}
}

// BenchmarkFrameDecode measures decoding of a masked client frame.
func BenchmarkFrameDecode(b *testing.B) {
	payload := bytes.Repeat([]byte{'a'}, 512)
	key := [4]byte{9, 8, 7, 6}
	raw := []byte{protocol.FinBit | byte(protocol.OpcodeText), protocol.MaskBit | 126, 0x02, 0x00}
	raw = append(raw, key[:]...)
	masked := append([]byte(nil), payload...)
	protocol.MaskPayload(masked, key)
	raw = append(raw, masked...)

	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := protocol.Decode(raw, protocol.MaxFramePayload); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkByteQueueChurn appends and drains like a busy write queue.
func BenchmarkByteQueueChurn(b *testing.B) {
	q := bytequeue.New(16 << 10)
	chunk := bytes.Repeat([]byte{'x'}, 300)
	b.SetBytes(int64(len(chunk)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q.Append(chunk)
		q.Drain(250)
		if q.Len() > 8<<10 {
			q.Reset()
		}
	}
}

// BenchmarkMailboxPostDrain measures the worker-to-reactor control path.
func BenchmarkMailboxPostDrain(b *testing.B) {
	mb := concurrency.NewMailbox[session.Message](nil)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			mb.Post(session.Rearm(1))
			mb.Drain(func(session.Message) {})
		}
	})
}

// BenchmarkBroadcastFanout delivers one message to 256 running peers.
func BenchmarkBroadcastFanout(b *testing.B) {
	reg := session.NewRegistry()
	for id := api.ConnectionID(1); id <= 256; id++ {
		c := session.NewConnection(id, fake.NewStream(), discard{}, session.Options{Variant: session.VariantLine})
		c.Register()
		reg.Insert(c)
	}
	bus := session.NewBus(reg)
	payload := []byte("Guest: hello")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bus.Deliver(1, protocol.OpcodeText, payload)
		if i%64 == 63 {
			b.StopTimer()
			for _, h := range reg.Snapshot() {
				h.Conn.HandleWritable()
			}
			b.StartTimer()
		}
	}
}

type discard struct{}

func (discard) Post(session.Message) bool { return true }
