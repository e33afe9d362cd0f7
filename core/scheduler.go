package core

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Scheduler owns the scratch arena, the ready queue and the worker pool,
// and exposes the graph-building API.
//
// A graph's lifetime is Reset -> CreateJob/CreateGroup/Depend -> Kick ->
// WaitJob/WaitCounter/WaitAll -> Reset. Graph building happens on a single
// goroutine; once Kick releases the self-references, adding jobs or edges
// to the current graph fails with ErrAfterKick until the next Reset.
//
// Schedulers are independent instances, each with its own workers. There
// is no process-wide state.
type Scheduler struct {
	id   string
	desc SchedulerDesc

	arena *Arena
	queue *ReadyQueue
	pool  *WorkerPool

	// graph counts every job of the current graph that has not completed
	// yet. Reset uses it to refuse rewinding a live graph; WaitAll blocks
	// on it.
	graph  Counter
	kicked bool
	graphs atomic.Uint64

	// rootsBuf is reused across kicks to avoid per-graph garbage.
	rootsBuf []*Job

	// doneCond is broadcast after every job completion so WaitJob can
	// re-check the waited-on job's done flag.
	doneMu   sync.Mutex
	doneCond *sync.Cond

	history executionHistory
}

// NewScheduler creates a scheduler per the desc and spawns its workers.
func NewScheduler(desc SchedulerDesc) *Scheduler {
	desc = desc.withDefaults()

	s := &Scheduler{
		id:      "sch_" + uuid.New().String(),
		desc:    desc,
		arena:   NewArena(desc.ScratchBytes),
		queue:   NewReadyQueue(),
		history: newExecutionHistory(defaultJobHistoryCapacity),
	}
	s.doneCond = sync.NewCond(&s.doneMu)
	s.pool = NewWorkerPool(s.id, desc.NumWorkers, s.queue, s.runJob, desc.Logger)
	s.pool.Start()

	desc.Logger.Info("scheduler initialized",
		F("scheduler", s.id),
		F("workers", desc.NumWorkers),
		F("scratch_bytes", desc.ScratchBytes))
	return s
}

// ID returns the scheduler's unique instance ID.
func (s *Scheduler) ID() string {
	return s.id
}

// =============================================================================
// Graph building
// =============================================================================

// CreateJob allocates a job with the given body and opaque data. pending
// starts at one: the self-reference keeps the job undispatchable while the
// builder wires edges into it; Kick releases it. If counter is non-nil it
// is incremented now and decremented when the body returns.
func (s *Scheduler) CreateJob(body JobFunc, data any, counter *Counter) (*Job, error) {
	if s.kicked {
		return nil, ErrAfterKick
	}
	j, err := s.arena.AllocJob()
	if err != nil {
		return nil, err
	}
	j.body = body
	j.data = data
	j.counter = counter
	j.pending.Store(1)
	if counter != nil {
		counter.Add(1)
	}
	s.graph.Add(1)
	return j, nil
}

// CreateGroup allocates a bodyless job used to fan-in many children into a
// single successor. If parent is non-nil, the parent is made to depend on
// the new group.
func (s *Scheduler) CreateGroup(parent *Job) (*Job, error) {
	g, err := s.CreateJob(nil, nil, nil)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		if err := s.Depend(parent, g); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Depend declares that parent cannot run until child has completed: parent
// joins child's successor list and parent's pending count grows by one.
// Edges may only be added before Kick.
func (s *Scheduler) Depend(parent, child *Job) error {
	if s.kicked {
		return ErrAfterKick
	}
	if parent == nil || child == nil {
		return ErrNilJob
	}
	e, err := s.arena.AllocEdge()
	if err != nil {
		return err
	}
	e.to = parent
	child.addSuccessor(e)
	parent.pending.Add(1)
	return nil
}

// Alloc returns size bytes aligned to align from the scratch arena, for
// caller job data that should live and die with the graph.
func (s *Scheduler) Alloc(size, align int) ([]byte, error) {
	if s.kicked {
		return nil, ErrAfterKick
	}
	return s.arena.Alloc(size, align)
}

// Kick releases every job's self-reference and pushes the jobs whose
// pending count reached zero onto the ready queue, waking all workers.
// The graph's edge set is frozen from this point on.
func (s *Scheduler) Kick() error {
	if s.kicked {
		return ErrAfterKick
	}
	if !s.pool.Running() {
		return ErrNotRunning
	}
	s.kicked = true
	s.graphs.Add(1)

	roots := s.rootsBuf[:0]
	s.arena.forEachJob(func(j *Job) {
		if j.pending.Add(-1) == 0 {
			roots = append(roots, j)
		}
	})
	s.queue.PushMany(roots)
	s.rootsBuf = roots[:0]

	s.desc.Metrics.RecordGraphKick(s.id, s.arena.JobCount())
	s.desc.Logger.Debug("graph kicked",
		F("scheduler", s.id),
		F("jobs", s.arena.JobCount()),
		F("roots", len(roots)))
	return nil
}

// Reset rewinds the arena and clears the ready queue, invalidating every
// job reference from the previous graph. It fails with ErrJobsInFlight if
// the current graph was kicked and has not fully drained; callers must
// wait first. Jobs that were created but never kicked are discarded.
func (s *Scheduler) Reset() error {
	if s.kicked && s.graph.Value() != 0 {
		return ErrJobsInFlight
	}
	s.queue.Clear()
	s.arena.Reset()
	s.graph.rewind()
	s.kicked = false
	s.desc.Logger.Debug("scheduler reset", F("scheduler", s.id))
	return nil
}

// =============================================================================
// Waiting
// =============================================================================

// WaitJob blocks until the job's body (or group completion) has returned.
// Because completion only happens after every dependency completed, all
// transitive ancestors of the job are done when WaitJob returns.
func (s *Scheduler) WaitJob(j *Job) {
	if j == nil {
		return
	}
	s.doneMu.Lock()
	defer s.doneMu.Unlock()
	for !j.done.Load() {
		s.doneCond.Wait()
	}
}

// WaitCounter blocks until the counter reaches zero. All side effects of
// the jobs that referenced the counter are visible when it returns.
func (s *Scheduler) WaitCounter(c *Counter) {
	if c == nil {
		return
	}
	c.Wait()
}

// WaitAll blocks until every job of the current graph has completed.
func (s *Scheduler) WaitAll() {
	s.graph.Wait()
}

// Sleep is a cooperative sleep of the calling goroutine.
func (s *Scheduler) Sleep(d time.Duration) {
	time.Sleep(d)
}

// =============================================================================
// Lifecycle
// =============================================================================

// SetPaused pauses or resumes dispatch. While paused, no new body starts;
// bodies already running finish normally.
func (s *Scheduler) SetPaused(paused bool) {
	s.pool.SetPaused(paused)
	s.desc.Logger.Debug("pause flag flipped",
		F("scheduler", s.id), F("paused", paused))
}

// SetRunning clears or sets the running flag. Clearing it is a
// graph-boundary stop: in-flight bodies complete, no new bodies begin, and
// workers exit. A stopped scheduler cannot be restarted.
func (s *Scheduler) SetRunning(running bool) {
	s.pool.SetRunning(running)
	s.desc.Logger.Info("running flag flipped",
		F("scheduler", s.id), F("running", running))
}

// Stop clears the running flag and joins all workers.
func (s *Scheduler) Stop() {
	s.pool.Stop()
	s.desc.Logger.Info("scheduler stopped", F("scheduler", s.id))
}

// Paused reports whether dispatch is paused.
func (s *Scheduler) Paused() bool { return s.pool.Paused() }

// Running reports whether the workers are accepting work.
func (s *Scheduler) Running() bool { return s.pool.Running() }

// =============================================================================
// Observability
// =============================================================================

// Stats returns a point-in-time snapshot of the scheduler's state.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		ID:        s.id,
		Workers:   s.pool.WorkerCount(),
		Busy:      s.pool.BusyWorkers(),
		Queued:    s.queue.Len(),
		Inflight:  int(s.graph.Value()),
		Graphs:    s.graphs.Load(),
		ArenaUsed: s.arena.Used(),
		ArenaCap:  s.arena.Cap(),
		Running:   s.pool.Running(),
		Paused:    s.pool.Paused(),
	}
}

// RecentJobs returns the most recent completed job records, newest first.
func (s *Scheduler) RecentJobs(limit int) []JobExecutionRecord {
	return s.history.Recent(limit)
}

// =============================================================================
// Completion protocol
// =============================================================================

// runJob executes one popped job on a worker: run the body (if any),
// release successors whose pending count reaches zero, decrement the
// counters, then mark the job done and wake waiters. The pending decrement
// publishes this job's writes to whichever worker dispatches the
// successor.
func (s *Scheduler) runJob(workerID int, j *Job) {
	start := time.Now()
	panicked := false

	if j.body != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					panicked = true
					s.desc.PanicHandler.HandlePanic(s.id, workerID, resolveJobName(j), r, debug.Stack())
					s.desc.Metrics.RecordJobPanic(s.id)
				}
			}()
			j.body(j.data)
		}()
	}

	for e := j.successors; e != nil; e = e.next {
		if e.to.pending.Add(-1) == 0 {
			s.queue.Push(e.to)
		}
	}

	finished := time.Now()
	s.history.Add(JobExecutionRecord{
		Name:       resolveJobName(j),
		WorkerID:   workerID,
		Group:      j.IsGroup(),
		StartedAt:  start,
		FinishedAt: finished,
		Duration:   finished.Sub(start),
		Panicked:   panicked,
	})
	if !j.IsGroup() {
		s.desc.Metrics.RecordJobDuration(s.id, finished.Sub(start))
	}

	// The internal graph count drops before any waiter can observe this
	// job as complete, so a wait-then-Reset sequence never sees the graph
	// as still in flight.
	s.graph.Sub(1)

	if j.counter != nil {
		j.counter.Sub(1)
	}

	j.done.Store(true)
	s.doneMu.Lock()
	s.doneCond.Broadcast()
	s.doneMu.Unlock()
}
