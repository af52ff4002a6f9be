package fake

import (
	"testing"
	"time"

	"github.com/momentics/hioload-chat/api"
)

func TestPollerOneShot(t *testing.T) {
	p := NewPoller()
	if err := p.Register(10, 1, api.InterestReadable); err != nil {
		t.Fatal(err)
	}
	p.Inject(1, api.Readable)
	p.Inject(1, api.Readable)

	events := make([]api.ReadyEvent, 4)
	if n, _ := p.Wait(events, time.Second); n != 1 {
		t.Fatalf("first Wait = %d, want 1", n)
	}
	if n, _ := p.Wait(events, 20*time.Millisecond); n != 0 {
		t.Fatalf("Wait before rearm = %d, want 0", n)
	}
	if err := p.Rearm(10, 1, api.InterestReadable); err != nil {
		t.Fatal(err)
	}
	if n, _ := p.Wait(events, time.Second); n != 1 {
		t.Fatalf("Wait after rearm = %d, want 1", n)
	}
	if err := p.Deregister(10); err != nil {
		t.Fatal(err)
	}
	if err := p.Rearm(10, 1, api.InterestReadable); err == nil {
		t.Fatal("Rearm after Deregister succeeded")
	}
	if err := p.Deregister(10); err == nil || p.FailedDeregisters() != 1 {
		t.Fatalf("second Deregister = %v, failures = %d", err, p.FailedDeregisters())
	}
}

func TestPollerWake(t *testing.T) {
	p := NewPoller()
	go p.Wake()
	if n, err := p.Wait(make([]api.ReadyEvent, 1), 5*time.Second); n != 0 || err != nil {
		t.Fatalf("Wait = %d, %v", n, err)
	}
}
