package jobgraph

import "github.com/tidegate/jobgraph/core"

// New creates a scheduler per the desc and spawns its workers. Zero-value
// desc fields are filled from DefaultSchedulerDesc.
func New(desc SchedulerDesc) *Scheduler {
	return core.NewScheduler(desc)
}

// MaxThreads returns the platform's reported hardware concurrency.
// Callers typically pass MaxThreads()-1 as NumWorkers to reserve a slot
// for the goroutine building graphs.
func MaxThreads() int {
	return core.MaxThreads()
}

// ParallelFor creates one job per element of items on the scheduler's
// current graph, kicks, and blocks until every body has run. body receives
// a pointer into items, so element updates are visible to the caller when
// ParallelFor returns.
//
// The helper does not Reset: it composes with jobs already created on the
// current graph, and the caller rewinds the arena afterwards as usual.
func ParallelFor[T any](s *Scheduler, items []T, body func(item *T)) error {
	barrier, err := s.CreateGroup(nil)
	if err != nil {
		return err
	}

	// One trampoline shared by every element; per-element state rides in
	// the data argument.
	fn := func(data any) {
		body(data.(*T))
	}

	for i := range items {
		j, err := s.CreateJob(fn, &items[i], nil)
		if err != nil {
			return err
		}
		if err := s.Depend(barrier, j); err != nil {
			return err
		}
	}

	if err := s.Kick(); err != nil {
		return err
	}
	s.WaitJob(barrier)
	return nil
}
