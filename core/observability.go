package core

import "time"

// JobExecutionRecord captures a completed job execution event.
type JobExecutionRecord struct {
	Name       string
	WorkerID   int
	Group      bool
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// SchedulerStats represents runtime observability state for a scheduler.
type SchedulerStats struct {
	ID        string
	Workers   int
	Busy      int
	Queued    int
	Inflight  int
	Graphs    uint64
	ArenaUsed int
	ArenaCap  int
	Running   bool
	Paused    bool
}
