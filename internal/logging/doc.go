// Package logging builds slog loggers with resyncd's console and JSON
// handlers, standardized field names, and context-derived attributes.
//
// The console handler renders compact human-readable lines for TTYs; JSON
// output is used otherwise or when configured. Component loggers and
// context fields keep job, queue, and worker identifiers attached to every
// record without threading them by hand.
package logging
