package session_test

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/momentics/hioload-chat/api"
	"github.com/momentics/hioload-chat/fake"
	"github.com/momentics/hioload-chat/internal/session"
	"github.com/momentics/hioload-chat/protocol"
)

const upgradeRequest = "GET /chat HTTP/1.1\r\n" +
	"Host: localhost\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
	"Sec-WebSocket-Version: 13\r\n\r\n"

const upgradeResponse = "HTTP/1.1 101 Switching Protocols\r\n" +
	"Upgrade: websocket\r\n" +
	"Connection: Upgrade\r\n" +
	"Sec-WebSocket-Accept: s3pPLMBiTxaQ9kYGzzhZRbK+xOo=\r\n\r\n"

// recorder is a session.Poster that keeps every message.
type recorder struct {
	mu   sync.Mutex
	msgs []session.Message
}

func (r *recorder) Post(m session.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return true
}

func (r *recorder) take() []session.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

// last returns the final message of a handler run and checks it is the only
// rearm or close in msgs.
func last(t *testing.T, msgs []session.Message) session.Message {
	t.Helper()
	if len(msgs) == 0 {
		t.Fatal("handler posted nothing")
	}
	terminal := 0
	for _, m := range msgs {
		if m.Kind == session.MsgRearm || m.Kind == session.MsgClose {
			terminal++
		}
	}
	if terminal != 1 {
		t.Fatalf("handler posted %d rearm/close messages: %+v", terminal, msgs)
	}
	return msgs[len(msgs)-1]
}

// maskedFrame encodes a client-to-server frame.
func maskedFrame(op protocol.Opcode, payload []byte) []byte {
	key := [4]byte{0x12, 0x34, 0x56, 0x78}
	raw := []byte{protocol.FinBit | byte(op)}
	n := len(payload)
	switch {
	case n <= 125:
		raw = append(raw, protocol.MaskBit|byte(n))
	case n <= 0xFFFF:
		raw = append(raw, protocol.MaskBit|126)
		raw = binary.BigEndian.AppendUint16(raw, uint16(n))
	default:
		raw = append(raw, protocol.MaskBit|127)
		raw = binary.BigEndian.AppendUint64(raw, uint64(n))
	}
	raw = append(raw, key[:]...)
	masked := append([]byte(nil), payload...)
	protocol.MaskPayload(masked, key)
	return append(raw, masked...)
}

func newConn(t *testing.T, id api.ConnectionID, opts session.Options) (*session.Connection, *fake.Stream, *recorder) {
	t.Helper()
	s := fake.NewStream()
	rec := &recorder{}
	c := session.NewConnection(id, s, rec, opts)
	c.Register()
	return c, s, rec
}

// established returns a websocket connection that has completed the handshake.
func established(t *testing.T, id api.ConnectionID, opts session.Options) (*session.Connection, *fake.Stream, *recorder) {
	t.Helper()
	c, s, rec := newConn(t, id, opts)
	s.FeedString(upgradeRequest)
	c.HandleReadable()
	c.HandleWritable()
	if got := string(s.TakeWritten()); got != upgradeResponse {
		t.Fatalf("handshake response = %q", got)
	}
	if c.State() != session.StateRunning {
		t.Fatalf("state = %s, want running", c.State())
	}
	rec.take()
	return c, s, rec
}

func decodeAll(t *testing.T, raw []byte) []protocol.Frame {
	t.Helper()
	var out []protocol.Frame
	for len(raw) > 0 {
		f, n, err := protocol.Decode(raw, 0)
		if err != nil {
			t.Fatalf("decode server output: %v", err)
		}
		out = append(out, f)
		raw = raw[n:]
	}
	return out
}
