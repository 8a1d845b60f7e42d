// Package queue holds the ordered set of pending delivery items and mirrors
// it to durable storage.
//
// The in-memory list is authoritative. Persistence is best-effort and
// write-after-mutate: the full queue is serialized under a single key after
// each controlled mutation, and a crash between a mutation and the next
// persist loses only that mutation. Items are immutable value records;
// retry counting replaces an item with an updated copy at the same
// position, never mutates it in place.
package queue
