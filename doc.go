// Package jobgraph provides a low-overhead DAG job scheduler for
// compute-bound parallel work on a single machine.
//
// A caller builds a directed acyclic graph of jobs with data dependencies,
// kicks the graph onto a pool of workers, and waits for completion on a
// specific job or on a shared counter. The scheduler is built for
// interactive and real-time workloads (build pipelines, frame graphs,
// batch data processing) that construct many short-lived graphs
// repeatedly: all graph memory comes from a scratch arena that is rewound
// between graphs, so steady-state rebuilds produce no heap traffic.
//
// # Quick Start
//
// Create a scheduler, build a graph, kick and wait:
//
//	sch := jobgraph.New(jobgraph.SchedulerDesc{NumWorkers: 4})
//	defer sch.Stop()
//
//	parent, _ := sch.CreateJob(func(data any) {
//		fmt.Println("runs last")
//	}, nil, nil)
//
//	for i := 0; i < 8; i++ {
//		child, _ := sch.CreateJob(doWork, &inputs[i], nil)
//		sch.Depend(parent, child) // parent waits for child
//	}
//
//	sch.Kick()
//	sch.WaitJob(parent)
//	sch.Reset() // rewind the arena before building the next graph
//
// # Key Concepts
//
// Job: a node in the dependency graph. Its body is an opaque func(data any)
// executed at most once per kick, on whichever worker pops it. A job only
// becomes dispatchable when every job it depends on has completed.
//
// Group: a bodyless job used to fan many children into a single successor
// without duplicating edges. Create one with CreateGroup.
//
// Counter: a caller-owned atomic count of in-flight jobs. Jobs created with
// a counter increment it; completion decrements it; WaitCounter blocks
// until it reaches zero. Waiting on a counter and waiting on a parent job
// that depends on everything are equivalent ways to drain a graph.
//
// Kick: releases the graph to the workers. Until Kick, every job holds a
// self-reference that keeps it off the ready queue, so a dependency-free
// job cannot complete while its outgoing edges are still being wired.
//
// # Lifecycle
//
// Graphs cycle through Reset -> build -> Kick -> wait. Reset rewinds the
// arena and invalidates every job reference from the previous graph; it
// refuses to run (ErrJobsInFlight) while the previous graph is still
// draining. SetPaused(true) holds back new bodies without interrupting
// running ones. SetRunning(false) drains and stops the workers for good.
//
// # Ordering
//
// For every edge added with Depend(parent, child), the completion of
// child's body happens-before the start of parent's body, so jobs may
// safely hand results to their successors through shared data. A counter
// reaching zero orders every decrementing job's writes before the waiter's
// observation. Sibling jobs are unordered.
//
// For more details, see the core package, which hosts the engine types
// re-exported here.
package jobgraph
