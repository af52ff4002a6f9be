//go:build linux

package reactor

import (
	"testing"
	"time"

	"github.com/momentics/hioload-chat/api"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func TestPollerOneShotAndRearm(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	a, b := socketPair(t)
	const id = api.ConnectionID(1<<40 | 7)
	if err := p.Register(a, id, api.InterestReadable); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := unix.Write(b, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	events := make([]api.ReadyEvent, 8)
	n, err := p.Wait(events, time.Second)
	if err != nil || n != 1 {
		t.Fatalf("Wait = %d, %v", n, err)
	}
	if events[0].ID != id || events[0].Readiness&api.Readable == 0 {
		t.Fatalf("event = %+v", events[0])
	}

	// One-shot: no second notification until rearmed, even though data is unread.
	if n, _ := p.Wait(events, 50*time.Millisecond); n != 0 {
		t.Fatalf("unexpected event before rearm: %+v", events[0])
	}

	if err := p.Rearm(a, id, api.InterestReadable); err != nil {
		t.Fatalf("Rearm: %v", err)
	}
	n, err = p.Wait(events, time.Second)
	if err != nil || n != 1 || events[0].ID != id {
		t.Fatalf("Wait after rearm = %d, %v, %+v", n, err, events[0])
	}

	if err := p.Deregister(a); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
}

func TestPollerWritableAndHangup(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	a, b := socketPair(t)
	if err := p.Register(a, 3, api.InterestWritable); err != nil {
		t.Fatalf("Register: %v", err)
	}
	events := make([]api.ReadyEvent, 4)
	if n, err := p.Wait(events, time.Second); err != nil || n != 1 || events[0].Readiness&api.Writable == 0 {
		t.Fatalf("Wait = %d, %v, %+v", n, err, events[0])
	}

	unix.Shutdown(b, unix.SHUT_RDWR)
	if err := p.Rearm(a, 3, api.InterestReadable); err != nil {
		t.Fatalf("Rearm: %v", err)
	}
	if n, err := p.Wait(events, time.Second); err != nil || n != 1 || events[0].Readiness&api.Hangup == 0 {
		t.Fatalf("Wait = %d, %v, %+v", n, err, events[0])
	}
}

func TestPollerWake(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Wake()
	}()
	start := time.Now()
	n, err := p.Wait(make([]api.ReadyEvent, 4), 5*time.Second)
	if err != nil || n != 0 {
		t.Fatalf("Wait = %d, %v", n, err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("Wake did not interrupt Wait")
	}
}
