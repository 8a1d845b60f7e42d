// Package dispatch sends queued items to their targets over HTTP.
package dispatch
