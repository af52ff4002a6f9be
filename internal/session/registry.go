// File: internal/session/registry.go
// Package session
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Registry maps connection ids to handles. Only the reactor goroutine
// mutates it; Len is safe from any goroutine.

package session

import (
	"cmp"
	"slices"
	"sync/atomic"

	"github.com/momentics/hioload-chat/api"
)

// Handle is the registry entry of one connection. InFlight is the armed /
// in-flight token: the reactor sets it when it submits a job and clears it
// when the job's rearm comes back. No job is submitted while it is set.
type Handle struct {
	Conn     *Connection
	Fd       int
	InFlight bool
}

// Registry is the reactor-owned connection table. order holds the
// handles sorted by id so Snapshot never sorts.
type Registry struct {
	conns map[api.ConnectionID]*Handle
	order []*Handle
	size  atomic.Int64
}

func byID(h *Handle, id api.ConnectionID) int { return cmp.Compare(h.Conn.ID(), id) }

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[api.ConnectionID]*Handle)}
}

// Insert adds c. It returns false if the id is already present.
func (r *Registry) Insert(c *Connection) (*Handle, bool) {
	if _, ok := r.conns[c.ID()]; ok {
		return nil, false
	}
	h := &Handle{Conn: c, Fd: c.Fd()}
	r.conns[c.ID()] = h
	i, _ := slices.BinarySearchFunc(r.order, c.ID(), byID)
	r.order = slices.Insert(r.order, i, h)
	r.size.Add(1)
	return h, true
}

// Get looks up id.
func (r *Registry) Get(id api.ConnectionID) (*Handle, bool) {
	h, ok := r.conns[id]
	return h, ok
}

// Remove deletes id and returns its handle. Removing a missing id returns
// false, which makes repeated close requests no-ops.
func (r *Registry) Remove(id api.ConnectionID) (*Handle, bool) {
	h, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	if i, found := slices.BinarySearchFunc(r.order, id, byID); found {
		r.order = slices.Delete(r.order, i, i+1)
	}
	r.size.Add(-1)
	return h, true
}

// Snapshot returns the handles in ascending id order.
func (r *Registry) Snapshot() []*Handle {
	return slices.Clone(r.order)
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return int(r.size.Load())
}
