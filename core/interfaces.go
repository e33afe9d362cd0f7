package core

import (
	"fmt"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling job body panics
// =============================================================================

// PanicHandler is called when a job body panics during execution.
// This allows custom panic handling, logging, and recovery strategies.
//
// The worker recovers the panic and still runs the job's completion
// protocol, so successors are released and counters are decremented even
// for a panicked job. Waiters never deadlock on a panicked body; the panic
// is reported here instead.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a job body panics.
	//
	// Parameters:
	// - schedulerID: The ID of the scheduler whose worker caught the panic
	// - workerID: The ID of the worker the job was running on
	// - jobName: The name of the job (may be a generated placeholder)
	// - panicInfo: The panic value recovered from the body
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(schedulerID string, workerID int, jobName string, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that logs to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(schedulerID string, workerID int, jobName string, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Worker %d @ %s] Job %q panic: %v\nStack trace:\n%s",
		workerID, schedulerID, jobName, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting job execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast to avoid impacting job execution
// performance on the worker hot path.
type Metrics interface {
	// RecordJobDuration records how long a job body took to execute.
	RecordJobDuration(schedulerID string, duration time.Duration)

	// RecordJobPanic records that a job body panicked during execution.
	RecordJobPanic(schedulerID string)

	// RecordGraphKick records that a graph was released to the workers,
	// with the number of jobs it contains.
	RecordGraphKick(schedulerID string, jobs int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordJobDuration is a no-op.
func (m *NilMetrics) RecordJobDuration(schedulerID string, duration time.Duration) {}

// RecordJobPanic is a no-op.
func (m *NilMetrics) RecordJobPanic(schedulerID string) {}

// RecordGraphKick is a no-op.
func (m *NilMetrics) RecordGraphKick(schedulerID string, jobs int) {}

// =============================================================================
// SchedulerDesc: Configuration for Scheduler
// =============================================================================

const (
	// DefaultScratchBytes is the default scratch arena budget.
	DefaultScratchBytes = 4096 * 1024
)

// SchedulerDesc holds configuration options for a Scheduler.
// All handlers are optional; if not provided, default implementations will be used.
type SchedulerDesc struct {
	// NumWorkers is the number of worker goroutines. Values below 1 select
	// MaxThreads()-1, reserving one slot for the caller's thread.
	// NumWorkers == 1 gives single-worker serial execution in queue order.
	NumWorkers int

	// ScratchBytes is the arena budget for job nodes, dependency edges and
	// user data allocated through Alloc. Allocation beyond this budget fails
	// with ErrOutOfArena.
	ScratchBytes int

	// Logger receives scheduler lifecycle events. Defaults to NoOpLogger.
	Logger Logger

	// PanicHandler is called when a job body panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record execution metrics. Defaults to NilMetrics.
	Metrics Metrics
}

// DefaultSchedulerDesc returns a desc with default workers, arena budget and handlers.
func DefaultSchedulerDesc() SchedulerDesc {
	return SchedulerDesc{
		NumWorkers:   MaxThreads() - 1,
		ScratchBytes: DefaultScratchBytes,
		Logger:       &NoOpLogger{},
		PanicHandler: &DefaultPanicHandler{},
		Metrics:      &NilMetrics{},
	}
}

// withDefaults fills unset desc fields the way DefaultSchedulerDesc would.
func (d SchedulerDesc) withDefaults() SchedulerDesc {
	if d.NumWorkers < 1 {
		d.NumWorkers = MaxThreads() - 1
	}
	if d.NumWorkers < 1 {
		d.NumWorkers = 1
	}
	if d.ScratchBytes <= 0 {
		d.ScratchBytes = DefaultScratchBytes
	}
	if d.Logger == nil {
		d.Logger = &NoOpLogger{}
	}
	if d.PanicHandler == nil {
		d.PanicHandler = &DefaultPanicHandler{}
	}
	if d.Metrics == nil {
		d.Metrics = &NilMetrics{}
	}
	return d
}
