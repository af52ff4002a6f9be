// File: control/debug.go
// Package control
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime debug handler and hook reflector for internal inspection.

package control

import (
	"runtime"
	"sync"
	"time"
)

// DebugHooks holds registered hook functions.
type DebugHooks struct {
	mu    sync.RWMutex
	hooks map[string]func() any
}

// NewDebugHooks creates a hook registry.
func NewDebugHooks() *DebugHooks {
	return &DebugHooks{
		hooks: make(map[string]func() any),
	}
}

// RegisterHook inserts a named debug hook. Hooks are called from HTTP
// handler goroutines and must be safe for concurrent use.
func (dp *DebugHooks) RegisterHook(name string, fn func() any) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.hooks[name] = fn
}

// DumpState returns output of all hooks.
func (dp *DebugHooks) DumpState() map[string]any {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	out := make(map[string]any, len(dp.hooks))
	for k, fn := range dp.hooks {
		out[k] = fn()
	}
	return out
}

// RegisterRuntimeHooks adds process-level hooks.
func RegisterRuntimeHooks(dp *DebugHooks) {
	started := time.Now()
	dp.RegisterHook("runtime.cpus", func() any { return runtime.NumCPU() })
	dp.RegisterHook("runtime.goroutines", func() any { return runtime.NumGoroutine() })
	dp.RegisterHook("runtime.go_version", func() any { return runtime.Version() })
	dp.RegisterHook("runtime.uptime_seconds", func() any { return int64(time.Since(started).Seconds()) })
}
