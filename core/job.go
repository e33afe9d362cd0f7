package core

import "sync/atomic"

// JobFunc is the body of a job. It receives the opaque data pointer given
// to CreateJob and runs to completion on a worker goroutine. Bodies must
// not block indefinitely; a body that blocks monopolizes its worker.
type JobFunc func(data any)

// Job is a node in the dependency graph.
//
// A job becomes eligible for dispatch when its pending count reaches zero.
// The count starts at one (a self-reference released by Kick) plus one per
// Depend edge pointing at it, and only ever decreases once the graph is
// kicked. The body runs at most once per kick.
//
// Jobs are allocated from the scheduler's arena and are only valid between
// their creation and the next Reset(). Callers hold non-owning references.
type Job struct {
	name  string
	index int
	body  JobFunc
	data  any

	// pending counts unsatisfied dependencies plus the kick self-reference.
	// The decrement-to-zero transition publishes the predecessor's writes
	// to whichever worker picks this job up.
	pending atomic.Int32
	done    atomic.Bool

	counter    *Counter
	successors *edge
}

// edge is a forward link from a finished job to a job that depends on it.
// Edges are arena-allocated and form a singly-linked list per job; the
// graph is only ever traversed in this direction, at completion time.
type edge struct {
	to   *Job
	next *edge
}

// SetName attaches a display name used in logs, panic reports and the
// execution history. Optional; unnamed jobs get a generated placeholder.
func (j *Job) SetName(name string) *Job {
	j.name = name
	return j
}

// Name returns the job's display name.
func (j *Job) Name() string {
	return j.name
}

// Done reports whether the job's body has returned (or, for a group,
// whether its completion has run).
func (j *Job) Done() bool {
	return j.done.Load()
}

// IsGroup reports whether the job is a bodyless grouping node.
func (j *Job) IsGroup() bool {
	return j.body == nil
}

// Pending returns the current dependency count, including the kick
// self-reference while the graph is still being built.
func (j *Job) Pending() int {
	return int(j.pending.Load())
}

// addSuccessor prepends an edge to the successor list. Dispatch order of
// successors is unspecified, so front insertion is fine and O(1).
func (j *Job) addSuccessor(e *edge) {
	e.next = j.successors
	j.successors = e
}
