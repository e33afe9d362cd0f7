package core

import (
	"sync"

	"github.com/eapache/queue"
)

// ReadyQueue holds jobs whose dependencies are all satisfied, in FIFO
// order, guarded by a single mutex with one condition variable for the
// worker wake protocol.
//
// Push signals one idle worker; PushMany and Broadcast wake everyone.
// Lifecycle flag flips (pause, stop) also go through Broadcast so parked
// workers re-check their state machine.
type ReadyQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items *queue.Queue
}

// NewReadyQueue creates an empty ready queue.
func NewReadyQueue() *ReadyQueue {
	q := &ReadyQueue{items: queue.New()}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends one job and wakes one waiting worker.
func (q *ReadyQueue) Push(j *Job) {
	q.mu.Lock()
	q.items.Add(j)
	q.mu.Unlock()
	q.cond.Signal()
}

// PushMany appends a batch of jobs and wakes all waiting workers.
func (q *ReadyQueue) PushMany(jobs []*Job) {
	if len(jobs) == 0 {
		return
	}
	q.mu.Lock()
	for _, j := range jobs {
		q.items.Add(j)
	}
	q.mu.Unlock()
	q.cond.Broadcast()
}

// TryPop removes and returns the oldest job, without blocking.
func (q *ReadyQueue) TryPop() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Length() == 0 {
		return nil, false
	}
	return q.items.Remove().(*Job), true
}

// PopWait blocks until a job is available, then removes and returns it.
//
// The queue stays parked while hold() reports true even if jobs are
// queued; it gives up and returns (nil, false) as soon as giveUp() reports
// true. Both predicates are re-evaluated on every wakeup, so flag flips
// must be followed by Broadcast.
func (q *ReadyQueue) PopWait(giveUp, hold func() bool) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if giveUp() {
			return nil, false
		}
		if !hold() && q.items.Length() > 0 {
			return q.items.Remove().(*Job), true
		}
		q.cond.Wait()
	}
}

// Len returns the number of queued jobs.
func (q *ReadyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// Broadcast wakes every parked worker so it re-checks the lifecycle flags.
// It takes the queue lock: a worker between its predicate check and
// cond.Wait still holds the lock, so the wakeup cannot slip past it.
func (q *ReadyQueue) Broadcast() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Clear drops all queued jobs and releases their references.
func (q *ReadyQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = queue.New()
}
