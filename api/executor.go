// File: api/executor.go
// Package api
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Executor contract for parallel task dispatch.

package api

// Executor abstracts a bounded pool of worker goroutines.
type Executor interface {
	// Submit schedules task for execution. It never blocks; a full queue is
	// reported as an error so the caller can shed the load.
	Submit(task func()) error

	// NumWorkers returns current number of worker routines.
	NumWorkers() int
}
