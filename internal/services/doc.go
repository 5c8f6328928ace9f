// Package services provides the shared error taxonomy and context plumbing
// used across resyncd subsystems.
//
// Sentinel markers classify failures from external tools and validation so
// the scheduler can decide whether to retry and the notifier can produce a
// safe user-facing message. Context helpers carry job, queue, worker, and
// user identifiers into structured logs.
package services
