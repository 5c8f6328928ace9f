// Package logs provides file tailing and offset helpers shared by the CLI
// and daemon diagnostics.
//
// It streams the daemon log with bounded memory usage, supports negative
// offsets for "last N lines" reads, and powers follow mode for
// `resyncd logs --follow`. Callers supply context deadlines so background
// polling shuts down cleanly when the CLI exits.
package logs
