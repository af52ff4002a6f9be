package fake

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-chat/api"
)

func TestStreamScript(t *testing.T) {
	s := NewStream()
	s.FeedString("hello")
	s.InterruptReads(1)
	buf := make([]byte, 3)
	if _, err := s.Read(buf); !errors.Is(err, api.ErrInterrupted) {
		t.Fatalf("err = %v", err)
	}
	if n, _ := s.Read(buf); n != 3 || string(buf) != "hel" {
		t.Fatalf("Read = %d %q", n, buf)
	}
	if n, _ := s.Read(buf); n != 2 || string(buf[:n]) != "lo" {
		t.Fatalf("Read = %d %q", n, buf[:n])
	}
	if _, err := s.Read(buf); !errors.Is(err, api.ErrWouldBlock) {
		t.Fatalf("drained Read = %v", err)
	}
	s.SetWriteChunk(2)
	if n, _ := s.Write([]byte("abcd")); n != 2 {
		t.Fatalf("Write = %d", n)
	}
	if string(s.Written()) != "ab" || s.WriteCalls() != 1 {
		t.Fatalf("written %q calls %d", s.Written(), s.WriteCalls())
	}
	s.Close()
	if _, err := s.Read(buf); !errors.Is(err, api.ErrClosed) {
		t.Fatalf("Read after Close = %v", err)
	}
}
