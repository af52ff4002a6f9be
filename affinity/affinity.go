// File: affinity/affinity.go
// Package affinity
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral API for CPU affinity. Platform-specific implementations are
// located in separate files guarded by build tags.

package affinity

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-chat/api"
)

// SetAffinity pins the calling OS thread to logical CPU cpuID. Callers must
// hold the thread with runtime.LockOSThread for the pin to stay meaningful.
func SetAffinity(cpuID int) error {
	if cpuID < 0 || cpuID >= runtime.NumCPU() {
		return fmt.Errorf("affinity: cpu %d out of range [0,%d): %w", cpuID, runtime.NumCPU(), api.ErrInvalidArgument)
	}
	return setAffinityPlatform(cpuID)
}

// PinThread locks the calling goroutine to its OS thread and pins that thread
// to cpuID. The goroutine should exit without unlocking: the runtime then
// discards the thread instead of reusing it with a narrowed mask.
func PinThread(cpuID int) error {
	runtime.LockOSThread()
	if err := SetAffinity(cpuID); err != nil {
		runtime.UnlockOSThread()
		return err
	}
	return nil
}
