// Package kv provides the durable key-value backend for courier state.
//
// State lives in a single SQLite table keyed by string. The delivery queue
// serializes its full contents under one well-known key; the store itself
// knows nothing about queue semantics. Writes assume a single daemon
// process; concurrent external writers are unsupported.
package kv
