// File: fake/doc.go
// Package fake
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for the poller, stream and
// listener contracts so the reactor and connections can be driven without
// real sockets.

package fake
