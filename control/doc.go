// File: control/doc.go
// Package control
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Runtime metrics, debug introspection and the admin HTTP surface of the
// chat server.
//
// Provides:
//   - Prometheus collectors on a per-server registry
//   - Named debug hooks dumped as JSON
//   - A chi router serving /metrics, /debug/state and /healthz
package control
