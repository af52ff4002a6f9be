//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Package reactor
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Linux epoll(7)-based poller. Every registration is EPOLLET|EPOLLONESHOT, so
// a descriptor reports at most one event until it is rearmed with
// EPOLL_CTL_MOD. An eventfd registered under a reserved id lets other
// goroutines interrupt EpollWait.

package reactor

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/momentics/hioload-chat/api"
	"golang.org/x/sys/unix"
)

// wakeID tags the eventfd registration. It is never handed to callers.
const wakeID = api.ConnectionID(math.MaxUint64)

// linuxPoller is an epoll-based api.Poller.
type linuxPoller struct {
	epfd   int
	wakefd int
	raw    []unix.EpollEvent
	closed atomic.Bool
}

// New constructs the platform poller.
func New() (api.Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	p := &linuxPoller{epfd: epfd, wakefd: wakefd}
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLET}
	packID(&ev, wakeID)
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("register eventfd: %w", err)
	}
	return p, nil
}

// Register adds fd to the epoll set with a one-shot registration.
func (p *linuxPoller) Register(fd int, id api.ConnectionID, interest api.Interest) error {
	return p.ctl(unix.EPOLL_CTL_ADD, fd, id, interest)
}

// Rearm renews a consumed one-shot registration. EPOLL_CTL_MOD re-evaluates
// readiness, so a condition that is already true is reported again.
func (p *linuxPoller) Rearm(fd int, id api.ConnectionID, interest api.Interest) error {
	return p.ctl(unix.EPOLL_CTL_MOD, fd, id, interest)
}

// Deregister removes fd from epoll.
func (p *linuxPoller) Deregister(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del fd=%d: %w", fd, err)
	}
	return nil
}

func (p *linuxPoller) ctl(op, fd int, id api.ConnectionID, interest api.Interest) error {
	if id == wakeID {
		return api.ErrInvalidArgument
	}
	ev := unix.EpollEvent{Events: epollEvents(interest)}
	packID(&ev, id)
	if err := unix.EpollCtl(p.epfd, op, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl fd=%d id=%d: %w", fd, id, err)
	}
	return nil
}

// Wait waits for epoll events and translates them into events.
func (p *linuxPoller) Wait(events []api.ReadyEvent, timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, api.ErrClosed
	}
	if len(events) == 0 {
		return 0, api.ErrInvalidArgument
	}
	if cap(p.raw) < len(events) {
		p.raw = make([]unix.EpollEvent, len(events))
	}
	raw := p.raw[:len(events)]

	ms := -1
	if timeout >= 0 {
		ms = int((timeout + time.Millisecond - 1) / time.Millisecond)
	}
	n, err := unix.EpollWait(p.epfd, raw, ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll_wait: %w", err)
	}

	out := 0
	for i := 0; i < n; i++ {
		id := unpackID(&raw[i])
		if id == wakeID {
			p.drainWake()
			continue
		}
		events[out] = api.ReadyEvent{ID: id, Readiness: readiness(raw[i].Events)}
		out++
	}
	return out, nil
}

// Wake interrupts a blocked Wait. Safe from any goroutine.
func (p *linuxPoller) Wake() error {
	if p.closed.Load() {
		return api.ErrClosed
	}
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	for {
		_, err := unix.Write(p.wakefd, buf[:])
		switch {
		case err == nil, errors.Is(err, unix.EAGAIN):
			// EAGAIN means the counter is saturated; a wake is already pending.
			return nil
		case errors.Is(err, unix.EINTR):
			continue
		default:
			return fmt.Errorf("eventfd write: %w", err)
		}
	}
}

func (p *linuxPoller) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(p.wakefd, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		return
	}
}

// Close closes the eventfd and the epoll instance.
func (p *linuxPoller) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	err1 := unix.Close(p.wakefd)
	err2 := unix.Close(p.epfd)
	return errors.Join(err1, err2)
}

func epollEvents(interest api.Interest) uint32 {
	ev := uint32(unix.EPOLLET | unix.EPOLLONESHOT | unix.EPOLLRDHUP)
	if interest&api.InterestReadable != 0 {
		ev |= unix.EPOLLIN
	}
	if interest&api.InterestWritable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func readiness(events uint32) api.Readiness {
	var r api.Readiness
	if events&unix.EPOLLIN != 0 {
		r |= api.Readable
	}
	if events&unix.EPOLLOUT != 0 {
		r |= api.Writable
	}
	if events&(unix.EPOLLHUP|unix.EPOLLRDHUP|unix.EPOLLERR) != 0 {
		r |= api.Hangup
	}
	return r
}

// packID stores the 64-bit id in the epoll_data union, which x/sys/unix
// exposes as the Fd and Pad fields.
func packID(ev *unix.EpollEvent, id api.ConnectionID) {
	ev.Fd = int32(uint32(id))
	ev.Pad = int32(uint32(id >> 32))
}

func unpackID(ev *unix.EpollEvent) api.ConnectionID {
	return api.ConnectionID(uint64(uint32(ev.Fd)) | uint64(uint32(ev.Pad))<<32)
}
