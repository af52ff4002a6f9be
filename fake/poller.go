// File: fake/poller.go
// Package fake
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// In-memory api.Poller with one-shot semantics. Tests inject readiness for
// an id; Wait delivers at most one injected event per armed registration and
// disarms it, so a second event for the same id waits until Rearm.

package fake

import (
	"fmt"
	"sync"
	"time"

	"github.com/momentics/hioload-chat/api"
)

type registration struct {
	fd       int
	interest api.Interest
	armed    bool
}

// Poller is a fake implementation of api.Poller.
type Poller struct {
	mu      sync.Mutex
	regs    map[api.ConnectionID]*registration
	byFd    map[int]api.ConnectionID
	pending []api.ReadyEvent
	wake    chan struct{}
	closed  bool

	rearms      int
	delivered   int
	deregFailed int
}

var _ api.Poller = (*Poller)(nil)

// NewPoller creates an empty poller.
func NewPoller() *Poller {
	return &Poller{
		regs: make(map[api.ConnectionID]*registration),
		byFd: make(map[int]api.ConnectionID),
		wake: make(chan struct{}, 1),
	}
}

// Inject queues a readiness notification for id.
func (p *Poller) Inject(id api.ConnectionID, r api.Readiness) {
	p.mu.Lock()
	p.pending = append(p.pending, api.ReadyEvent{ID: id, Readiness: r})
	p.mu.Unlock()
	p.signal()
}

func (p *Poller) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Register implements api.Poller.Register.
func (p *Poller) Register(fd int, id api.ConnectionID, interest api.Interest) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return api.ErrClosed
	}
	if _, ok := p.byFd[fd]; ok {
		return fmt.Errorf("fd %d already registered: %w", fd, api.ErrInvalidArgument)
	}
	p.regs[id] = &registration{fd: fd, interest: interest, armed: true}
	p.byFd[fd] = id
	return nil
}

// Rearm implements api.Poller.Rearm.
func (p *Poller) Rearm(fd int, id api.ConnectionID, interest api.Interest) error {
	p.mu.Lock()
	reg, ok := p.regs[id]
	if !ok || reg.fd != fd {
		p.mu.Unlock()
		return fmt.Errorf("rearm fd %d id %d: %w", fd, id, api.ErrNotFound)
	}
	reg.interest = interest
	reg.armed = true
	p.rearms++
	p.mu.Unlock()
	p.signal()
	return nil
}

// Deregister implements api.Poller.Deregister.
func (p *Poller) Deregister(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.byFd[fd]
	if !ok {
		p.deregFailed++
		return fmt.Errorf("deregister fd %d: %w", fd, api.ErrNotFound)
	}
	delete(p.byFd, fd)
	delete(p.regs, id)
	kept := p.pending[:0]
	for _, ev := range p.pending {
		if ev.ID != id {
			kept = append(kept, ev)
		}
	}
	p.pending = kept
	return nil
}

// Wait implements api.Poller.Wait.
func (p *Poller) Wait(events []api.ReadyEvent, timeout time.Duration) (int, error) {
	var deadline <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return 0, api.ErrClosed
		}
		n := p.collect(events)
		p.mu.Unlock()
		if n > 0 {
			return n, nil
		}
		select {
		case <-p.wake:
			// Wake or new injection: report what is ready, possibly nothing.
			p.mu.Lock()
			n = p.collect(events)
			p.mu.Unlock()
			return n, nil
		case <-deadline:
			return 0, nil
		}
	}
}

// collect moves deliverable events into out. Events for disarmed ids stay
// queued until the id is rearmed.
func (p *Poller) collect(out []api.ReadyEvent) int {
	n := 0
	kept := p.pending[:0]
	for _, ev := range p.pending {
		reg, ok := p.regs[ev.ID]
		if !ok {
			continue
		}
		if n < len(out) && reg.armed {
			reg.armed = false
			out[n] = ev
			n++
			p.delivered++
			continue
		}
		kept = append(kept, ev)
	}
	p.pending = kept
	return n
}

// Wake implements api.Poller.Wake.
func (p *Poller) Wake() error {
	p.signal()
	return nil
}

// Close implements api.Poller.Close.
func (p *Poller) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.signal()
	return nil
}

// Armed reports whether id has a live registration waiting for an event.
func (p *Poller) Armed(id api.ConnectionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	reg, ok := p.regs[id]
	return ok && reg.armed
}

// Interest returns the current interest of id.
func (p *Poller) Interest(id api.ConnectionID) (api.Interest, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	reg, ok := p.regs[id]
	if !ok {
		return api.InterestNone, false
	}
	return reg.interest, true
}

// Registered returns the number of live registrations.
func (p *Poller) Registered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.regs)
}

// Rearms returns the number of Rearm calls.
func (p *Poller) Rearms() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rearms
}

// Delivered returns the number of events handed out by Wait.
func (p *Poller) Delivered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delivered
}

// FailedDeregisters returns the number of Deregister calls for unknown fds.
func (p *Poller) FailedDeregisters() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deregFailed
}
