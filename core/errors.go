package core

import "errors"

// Sentinel errors returned by the graph-building API.
var (
	// ErrOutOfArena indicates the scratch arena cannot satisfy an allocation.
	// The caller may Reset() and retry with a smaller graph, or configure a
	// larger ScratchBytes at the next NewScheduler.
	ErrOutOfArena = errors.New("jobgraph: scratch arena exhausted")

	// ErrAfterKick indicates a job or edge was added to a graph that has
	// already been kicked. The graph must be Reset() before building again.
	ErrAfterKick = errors.New("jobgraph: graph already kicked")

	// ErrJobsInFlight indicates Reset() was called while jobs of the current
	// graph are still pending or executing. Callers must wait first.
	ErrJobsInFlight = errors.New("jobgraph: jobs still in flight")

	// ErrNotRunning indicates an operation that needs live workers was called
	// after SetRunning(false) stopped the pool.
	ErrNotRunning = errors.New("jobgraph: scheduler is not running")

	// ErrNilJob indicates a nil job reference was passed to Depend.
	ErrNilJob = errors.New("jobgraph: nil job reference")
)
