// Package logging configures slog output for the courier daemon and CLI.
//
// It provides console and JSON handlers, shared attribute helpers, and the
// standardized field keys (component, item_id, event_type, error_hint) used
// across packages so log lines stay greppable.
package logging
