// Command courier is the CLI front end for the courier daemon. It talks to
// courierd over the JSON-RPC Unix socket.
package main
