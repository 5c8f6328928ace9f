// Package notifications delivers job lifecycle events to an ntfy topic.
// Progress events are throttled per job; completion and failure always go
// out. Without a configured topic the service is a no-op.
package notifications
