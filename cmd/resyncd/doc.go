// Package main hosts the resyncd entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground via
// `serve` and translates every other invocation into IPC calls against a
// running daemon: job submission, job listing, status inspection, and
// notification tests. Configuration scaffolding lives under `config`.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags
// here.
package main
