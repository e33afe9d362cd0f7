package jobgraph

import "github.com/tidegate/jobgraph/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the jobgraph package for most use cases.

// Job is a node in the dependency graph
type Job = core.Job

// JobFunc is the body of a job
type JobFunc = core.JobFunc

// Counter is a caller-owned atomic in-flight job count
type Counter = core.Counter

// Scheduler owns the arena, the ready queue and the worker pool
type Scheduler = core.Scheduler

// SchedulerDesc configures a scheduler at creation
type SchedulerDesc = core.SchedulerDesc

// SchedulerStats is a point-in-time snapshot of scheduler state
type SchedulerStats = core.SchedulerStats

// JobExecutionRecord captures a completed job execution event
type JobExecutionRecord = core.JobExecutionRecord

// Logger is the structured logging interface used by the scheduler
type Logger = core.Logger

// Field is a key-value pair for structured logging
type Field = core.Field

// PanicHandler handles job body panics
type PanicHandler = core.PanicHandler

// Metrics collects job execution metrics
type Metrics = core.Metrics

// Sentinel errors
var (
	ErrOutOfArena   = core.ErrOutOfArena
	ErrAfterKick    = core.ErrAfterKick
	ErrJobsInFlight = core.ErrJobsInFlight
	ErrNotRunning   = core.ErrNotRunning
	ErrNilJob       = core.ErrNilJob
)

// Convenience constructors
var (
	DefaultSchedulerDesc = core.DefaultSchedulerDesc
	NewDefaultLogger     = core.NewDefaultLogger
	NewNoOpLogger        = core.NewNoOpLogger
	F                    = core.F
)
