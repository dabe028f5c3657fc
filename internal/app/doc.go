// Package app is the composition root of wcpms.
//
// Run wires configuration, logging, metrics, the WCPMS client, the session
// store and the terminal UI, then blocks until the user quits or the
// context is cancelled. Collections, Describe, Point and Region are the
// one-shot command line counterparts: they issue one request, print the
// result as text, a table or JSON, and return.
//
// # Startup
//
//  1. Load ~/.config/wcpms/config.toml (defaults when missing) and apply
//     the cube overrides from the command line
//  2. Open the slog text log at log_path; the terminal owns stdout
//  3. Register the client metrics on a private Prometheus registry and
//     serve them on metrics_addr when it is set
//  4. Build the client, the state.Store and the state.Session
//  5. Load prefs and start ui.Run
//
// The command line functions log to stderr instead and skip metrics.
//
// # Errors
//
// Configuration, log file and listener failures are returned from Run.
// Request failures inside the UI are shown in the status line and kept in
// the store; the one-shot commands return them unchanged so callers can use
// errors.As with wcpms.HTTPError, wcpms.TransportError and
// wcpms.DecodeError.
package app
