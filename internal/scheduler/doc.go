// Package scheduler dispatches remix jobs to fixed worker pools over two
// bounded queues. Priority work is routed to whichever queue is shorter so
// a burst of standard jobs never starves interactive requests, and worker
// panics are contained to the job that caused them.
package scheduler
