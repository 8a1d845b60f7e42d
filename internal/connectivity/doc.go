// Package connectivity reports whether the host can reach the network and
// broadcasts offline/online transitions.
//
// The delivery coordinator polls Online before each dispatch attempt and
// subscribes to edge notifications to trigger flushes when connectivity
// returns. Production deployments use the HTTP Probe; tests and always-on
// hosts use the Manual signal.
package connectivity
