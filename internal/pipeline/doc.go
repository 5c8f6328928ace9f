// Package pipeline implements the remix operations: manual resync,
// detected-alignment autoresync, tempo-matched randomresync, and plain
// download. Each job runs inside a locked scratch workspace, reports
// milestone progress to the job store and notifier, and delivers its
// output under a sanitized name.
package pipeline
