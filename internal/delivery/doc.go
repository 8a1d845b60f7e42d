// Package delivery coordinates the offline delivery queue.
//
// The Coordinator owns the queue store, subscribes to the connectivity
// signal, and drives flush cycles through a caller-supplied dispatch
// function. Delivery is at-least-once until the per-item retry budget is
// exhausted; exactly-once is not attempted. Dispatch and persistence
// failures never surface as errors to callers; observers learn about
// outcomes exclusively through the event stream.
package delivery
