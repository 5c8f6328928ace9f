// Package jobstore persists job submissions, progress, and outcomes in a
// local SQLite database.
//
// The scheduler writes lifecycle transitions (pending, running, completed,
// failed) and progress milestones as jobs move through the pipelines; the
// CLI reads the same records to render job history. The store is safe for
// concurrent use by the worker pools through SQLite's WAL mode.
package jobstore
