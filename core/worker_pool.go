package core

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// MaxThreads returns the platform's reported hardware concurrency.
// Callers typically reserve one slot for the goroutine building graphs.
func MaxThreads() int {
	return runtime.NumCPU()
}

// WorkerPool runs a fixed set of worker goroutines pulling from a shared
// ReadyQueue.
//
// Each worker cycles through idle -> checking -> running: it parks on the
// queue's condition while there is nothing to do, re-checks the running and
// paused flags on every wakeup, and otherwise pops one job and executes it.
// Exactly one worker executes a given job because the queue pop is
// exclusive. While paused, no new job body begins; in-flight bodies run to
// completion. Stopping drains the same way: workers finish their current
// job and exit.
type WorkerPool struct {
	schedulerID string
	workers     int
	queue       *ReadyQueue
	run         func(workerID int, j *Job)
	logger      Logger

	wg      sync.WaitGroup
	running atomic.Bool
	paused  atomic.Bool
	started atomic.Bool
	busy    atomic.Int32
}

// NewWorkerPool creates a pool of the given size. run is invoked for every
// popped job and must execute the completion protocol.
func NewWorkerPool(schedulerID string, workers int, queue *ReadyQueue, run func(workerID int, j *Job), logger Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &WorkerPool{
		schedulerID: schedulerID,
		workers:     workers,
		queue:       queue,
		run:         run,
		logger:      logger,
	}
}

// Start spawns the worker goroutines. Calling Start twice is a no-op.
func (p *WorkerPool) Start() {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	p.running.Store(true)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	p.logger.Debug("worker pool started",
		F("scheduler", p.schedulerID), F("workers", p.workers))
}

// workerLoop is the main loop for each worker.
func (p *WorkerPool) workerLoop(id int) {
	defer p.wg.Done()

	giveUp := func() bool { return !p.running.Load() }
	hold := func() bool { return p.paused.Load() }

	for {
		j, ok := p.queue.PopWait(giveUp, hold)
		if !ok {
			p.logger.Debug("worker exiting",
				F("scheduler", p.schedulerID), F("worker", id))
			return
		}
		p.busy.Add(1)
		p.run(id, j)
		p.busy.Add(-1)
	}
}

// SetPaused flips the pause flag and wakes parked workers so they re-check
// it. Pausing does not interrupt bodies already running.
func (p *WorkerPool) SetPaused(paused bool) {
	p.paused.Store(paused)
	p.queue.Broadcast()
}

// Paused reports whether dispatch is paused.
func (p *WorkerPool) Paused() bool {
	return p.paused.Load()
}

// Running reports whether the workers are accepting work.
func (p *WorkerPool) Running() bool {
	return p.running.Load()
}

// SetRunning clears or sets the running flag. Clearing it drains the pool:
// workers finish their current job, then exit. A stopped pool cannot be
// restarted; create a new scheduler instead.
func (p *WorkerPool) SetRunning(running bool) {
	p.running.Store(running)
	p.queue.Broadcast()
}

// Stop clears the running flag and joins all workers.
func (p *WorkerPool) Stop() {
	p.SetRunning(false)
	p.Join()
}

// Join waits for all worker goroutines to finish.
func (p *WorkerPool) Join() {
	p.wg.Wait()
}

// WorkerCount returns the number of workers.
func (p *WorkerPool) WorkerCount() int {
	return p.workers
}

// BusyWorkers returns the number of workers currently executing a body.
func (p *WorkerPool) BusyWorkers() int {
	return int(p.busy.Load())
}
