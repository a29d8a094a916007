// Package task implements the asynchronous job-processing core: the task
// registry binding task types to handlers, the in-memory FIFO job queue, the
// worker pool that drives the job state machine, and the concrete task
// handlers (daily digest, analysis).
package task
