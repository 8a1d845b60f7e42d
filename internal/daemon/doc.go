// Package daemon assembles the courier services and enforces
// single-instance execution. It owns the durable store, the connectivity
// signal, and the delivery coordinator, and exposes the operations the IPC
// control surface forwards to.
package daemon
