// Package workqueue implements the sentinel-terminated, multi-producer
// multi-consumer job queue the Reader workers drain from (spec.md 2, 5).
package workqueue

// Job is one read job: a byte range of a file. End == -1 means "read to
// EOF".
type Job struct {
	Path  string
	Start int64
	End   int64
}

// sentinelPath marks the queue-closing sentinel. Every worker that pops
// it must re-enqueue it before exiting, so peers also observe it exactly
// once (spec.md 2).
const sentinelPath = "\x00sentinel\x00"

// Sentinel is the shared terminating job.
var Sentinel = Job{Path: sentinelPath, Start: -1, End: -1}

// IsSentinel reports whether j is the queue-terminating sentinel.
func IsSentinel(j Job) bool { return j.Path == sentinelPath }

// Queue is a bounded FIFO of Jobs backed by a channel. Exclusive
// ownership of a Job passes to whichever worker's Pop call receives it.
type Queue struct {
	ch chan Job
}

// New creates a Queue sized to hold capacity jobs plus the sentinel.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan Job, capacity+1)}
}

// Push enqueues a job.
func (q *Queue) Push(j Job) { q.ch <- j }

// PushSentinel enqueues the terminating sentinel.
func (q *Queue) PushSentinel() { q.ch <- Sentinel }

// Pop dequeues the next job. ok is false only if the queue's channel was
// explicitly closed (used in tests); production callers rely on the
// sentinel, not channel closure, to detect completion.
func (q *Queue) Pop() (Job, bool) {
	j, ok := <-q.ch
	return j, ok
}

// Close closes the underlying channel. Only safe once every producer has
// finished pushing.
func (q *Queue) Close() { close(q.ch) }

// Len reports the number of jobs currently buffered, for diagnostics.
func (q *Queue) Len() int { return len(q.ch) }
