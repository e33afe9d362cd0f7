package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, workers int) *Scheduler {
	t.Helper()
	s := NewScheduler(SchedulerDesc{
		NumWorkers:   workers,
		ScratchBytes: 4096 * 1024,
	})
	t.Cleanup(s.Stop)
	return s
}

func TestScheduler_ParallelJobsComplete(t *testing.T) {
	s := newTestScheduler(t, 4)

	const n = 100
	f := func(i int) int { return i*i + 7 }

	results := make([]int, n)
	inputs := make([]int, n)
	for i := range inputs {
		inputs[i] = i
	}

	barrier, err := s.CreateGroup(nil)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		idx := &inputs[i]
		j, err := s.CreateJob(func(data any) {
			i := *data.(*int)
			results[i] = f(i)
		}, idx, nil)
		require.NoError(t, err)
		require.NoError(t, s.Depend(barrier, j))
	}

	require.NoError(t, s.Kick())
	s.WaitJob(barrier)

	for i := 0; i < n; i++ {
		require.Equal(t, f(i), results[i], "result[%d]", i)
	}
}

func TestScheduler_EachBodyRunsExactlyOnce(t *testing.T) {
	s := newTestScheduler(t, 8)

	const n = 64
	counts := make([]int32, n)

	barrier, err := s.CreateGroup(nil)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		slot := &counts[i]
		j, err := s.CreateJob(func(any) {
			atomic.AddInt32(slot, 1)
		}, nil, nil)
		require.NoError(t, err)
		require.NoError(t, s.Depend(barrier, j))
	}

	require.NoError(t, s.Kick())
	s.WaitJob(barrier)

	for i := range counts {
		require.EqualValues(t, 1, atomic.LoadInt32(&counts[i]), "job %d body count", i)
	}
}

// fanIn records body start order for the two-group graph
//
//	parent <- group0 <- group0_job <- child0_0..child0_14
//	parent <- group1 <- group1_job <- child1_0..child1_14
//
// using a shared monotonic sequence, so ordering asserts cannot be fooled
// by coarse clocks.
type fanIn struct {
	mu     sync.Mutex
	seq    int64
	starts map[string]int64
}

func (f *fanIn) record(name string) JobFunc {
	return func(any) {
		f.mu.Lock()
		f.seq++
		f.starts[name] = f.seq
		f.mu.Unlock()
	}
}

func (f *fanIn) start(name string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts[name]
}

func buildFanIn(t *testing.T, s *Scheduler, counter *Counter) (*Job, *fanIn) {
	t.Helper()
	f := &fanIn{starts: make(map[string]int64)}

	parent, err := s.CreateJob(f.record("parent"), nil, counter)
	require.NoError(t, err)

	for g := 0; g < 2; g++ {
		group, err := s.CreateGroup(parent)
		require.NoError(t, err)

		groupName := fmt.Sprintf("group%d_job", g)
		groupJob, err := s.CreateJob(f.record(groupName), nil, counter)
		require.NoError(t, err)
		require.NoError(t, s.Depend(group, groupJob))

		for i := 0; i < 15; i++ {
			name := fmt.Sprintf("child%d_%d", g, i)
			child, err := s.CreateJob(f.record(name), nil, counter)
			require.NoError(t, err)
			require.NoError(t, s.Depend(groupJob, child))
		}
	}
	return parent, f
}

func TestScheduler_FanInOrdering(t *testing.T) {
	s := newTestScheduler(t, 4)

	parent, f := buildFanIn(t, s, nil)

	require.NoError(t, s.Kick())
	s.WaitJob(parent)

	require.Len(t, f.starts, 33)
	parentStart := f.start("parent")
	for g := 0; g < 2; g++ {
		groupStart := f.start(fmt.Sprintf("group%d_job", g))
		assert.Less(t, groupStart, parentStart, "group %d job must start before parent", g)
		for i := 0; i < 15; i++ {
			childStart := f.start(fmt.Sprintf("child%d_%d", g, i))
			assert.Less(t, childStart, groupStart,
				"child%d_%d must start before its group job", g, i)
		}
	}
}

func TestScheduler_CounterWaitEquivalence(t *testing.T) {
	run := func(t *testing.T, waitOnCounter bool) map[string]int64 {
		s := newTestScheduler(t, 4)

		var counter Counter
		parent, f := buildFanIn(t, s, &counter)

		require.NoError(t, s.Kick())
		if waitOnCounter {
			s.WaitCounter(&counter)
		} else {
			s.WaitJob(parent)
		}

		require.EqualValues(t, 0, counter.Value())
		f.mu.Lock()
		defer f.mu.Unlock()
		require.Len(t, f.starts, 33, "all 33 bodies must have run before the wait returned")

		out := make(map[string]int64, len(f.starts))
		for k, v := range f.starts {
			out[k] = v
		}
		return out
	}

	viaJob := run(t, false)
	viaCounter := run(t, true)

	// Same observable side-effect set either way.
	require.Equal(t, len(viaJob), len(viaCounter))
	for name := range viaJob {
		_, ok := viaCounter[name]
		require.True(t, ok, "job %s missing from counter-wait run", name)
	}
}

func TestScheduler_RepeatedResetNoGrowth(t *testing.T) {
	s := newTestScheduler(t, 4)

	var arenaUsed int
	for iter := 0; iter < 1000; iter++ {
		parent, _ := buildFanIn(t, s, nil)

		require.NoError(t, s.Kick())
		s.WaitJob(parent)

		used := s.Stats().ArenaUsed
		if iter == 0 {
			arenaUsed = used
		} else {
			require.Equal(t, arenaUsed, used, "arena usage drifted on iteration %d", iter)
		}
		require.NoError(t, s.Reset())
		require.Zero(t, s.Stats().ArenaUsed)
	}
}

func TestScheduler_SingleWorkerRunsInQueueOrder(t *testing.T) {
	s := newTestScheduler(t, 1)

	const n = 100
	var mu sync.Mutex
	var order []int

	for i := 0; i < n; i++ {
		i := i
		_, err := s.CreateJob(func(any) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}, nil, nil)
		require.NoError(t, err)
	}

	require.NoError(t, s.Kick())
	s.WaitAll()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, n)
	for i, got := range order {
		require.Equal(t, i, got, "single-worker execution must follow enqueue order")
	}
}

func TestScheduler_PauseResume(t *testing.T) {
	s := newTestScheduler(t, 4)

	var started int32
	s.SetPaused(true)

	parent, err := s.CreateJob(func(any) { atomic.AddInt32(&started, 1) }, nil, nil)
	require.NoError(t, err)
	for i := 0; i < 16; i++ {
		j, err := s.CreateJob(func(any) { atomic.AddInt32(&started, 1) }, nil, nil)
		require.NoError(t, err)
		require.NoError(t, s.Depend(parent, j))
	}

	require.NoError(t, s.Kick())

	// No body may start while paused.
	time.Sleep(50 * time.Millisecond)
	require.EqualValues(t, 0, atomic.LoadInt32(&started))
	require.True(t, s.Paused())

	s.SetPaused(false)
	s.WaitJob(parent)
	require.EqualValues(t, 17, atomic.LoadInt32(&started))
}

func TestScheduler_StopDrains(t *testing.T) {
	s := NewScheduler(SchedulerDesc{NumWorkers: 2})

	release := make(chan struct{})
	var inFlight int32

	_, err := s.CreateJob(func(any) {
		atomic.AddInt32(&inFlight, 1)
		<-release
	}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Kick())

	// Wait until the body is on a worker.
	for atomic.LoadInt32(&inFlight) == 0 {
		time.Sleep(time.Millisecond)
	}

	s.SetRunning(false)
	close(release)
	s.Stop() // joins the workers

	require.False(t, s.Running())

	// The drained graph can be reset, but nothing dispatches afterwards.
	require.NoError(t, s.Reset())
	_, err = s.CreateJob(func(any) {}, nil, nil)
	require.NoError(t, err)
	require.ErrorIs(t, s.Kick(), ErrNotRunning)
}

func TestScheduler_WaitJobImpliesAncestorsDone(t *testing.T) {
	s := newTestScheduler(t, 4)

	const depth = 20
	done := make([]atomic.Bool, depth)

	var prev *Job
	for i := 0; i < depth; i++ {
		slot := &done[i]
		j, err := s.CreateJob(func(any) {
			slot.Store(true)
		}, nil, nil)
		require.NoError(t, err)
		if prev != nil {
			// Each job depends on the one created before it.
			require.NoError(t, s.Depend(j, prev))
		}
		prev = j
	}

	require.NoError(t, s.Kick())
	s.WaitJob(prev)

	for i := range done {
		require.True(t, done[i].Load(), "ancestor %d incomplete after WaitJob", i)
	}
}

func TestScheduler_BuildErrors(t *testing.T) {
	t.Run("out of arena", func(t *testing.T) {
		s := NewScheduler(SchedulerDesc{NumWorkers: 1, ScratchBytes: jobCost * 2})
		t.Cleanup(s.Stop)

		_, err := s.CreateJob(func(any) {}, nil, nil)
		require.NoError(t, err)
		_, err = s.CreateJob(func(any) {}, nil, nil)
		require.NoError(t, err)
		_, err = s.CreateJob(func(any) {}, nil, nil)
		require.ErrorIs(t, err, ErrOutOfArena)

		// Reset and retry with a smaller graph succeeds.
		require.NoError(t, s.Reset())
		_, err = s.CreateJob(func(any) {}, nil, nil)
		require.NoError(t, err)
	})

	t.Run("build after kick", func(t *testing.T) {
		s := newTestScheduler(t, 1)

		a, err := s.CreateJob(func(any) {}, nil, nil)
		require.NoError(t, err)
		b, err := s.CreateJob(func(any) {}, nil, nil)
		require.NoError(t, err)
		require.NoError(t, s.Kick())

		_, err = s.CreateJob(func(any) {}, nil, nil)
		require.ErrorIs(t, err, ErrAfterKick)
		_, err = s.CreateGroup(nil)
		require.ErrorIs(t, err, ErrAfterKick)
		require.ErrorIs(t, s.Depend(a, b), ErrAfterKick)
		require.ErrorIs(t, s.Kick(), ErrAfterKick)
		_, err = s.Alloc(8, 8)
		require.ErrorIs(t, err, ErrAfterKick)

		s.WaitAll()
		require.NoError(t, s.Reset())
		_, err = s.CreateJob(func(any) {}, nil, nil)
		require.NoError(t, err)
	})

	t.Run("nil job edge", func(t *testing.T) {
		s := newTestScheduler(t, 1)
		j, err := s.CreateJob(func(any) {}, nil, nil)
		require.NoError(t, err)
		require.ErrorIs(t, s.Depend(j, nil), ErrNilJob)
		require.ErrorIs(t, s.Depend(nil, j), ErrNilJob)
	})

	t.Run("reset while in flight", func(t *testing.T) {
		s := newTestScheduler(t, 1)

		release := make(chan struct{})
		_, err := s.CreateJob(func(any) { <-release }, nil, nil)
		require.NoError(t, err)
		require.NoError(t, s.Kick())

		time.Sleep(10 * time.Millisecond)
		require.ErrorIs(t, s.Reset(), ErrJobsInFlight)

		close(release)
		s.WaitAll()
		require.NoError(t, s.Reset())
	})
}

type recordingPanicHandler struct {
	mu    sync.Mutex
	calls []string
}

func (h *recordingPanicHandler) HandlePanic(schedulerID string, workerID int, jobName string, panicInfo any, stack []byte) {
	h.mu.Lock()
	h.calls = append(h.calls, jobName)
	h.mu.Unlock()
}

func TestScheduler_BodyPanicStillReleasesSuccessors(t *testing.T) {
	handler := &recordingPanicHandler{}
	s := NewScheduler(SchedulerDesc{NumWorkers: 2, PanicHandler: handler})
	t.Cleanup(s.Stop)

	var counter Counter
	var parentRan atomic.Bool

	parent, err := s.CreateJob(func(any) { parentRan.Store(true) }, nil, &counter)
	require.NoError(t, err)

	bad, err := s.CreateJob(func(any) { panic("boom") }, nil, &counter)
	require.NoError(t, err)
	bad.SetName("bad-apple")
	require.NoError(t, s.Depend(parent, bad))

	require.NoError(t, s.Kick())
	s.WaitCounter(&counter)

	require.True(t, parentRan.Load(), "successor of a panicked job must still run")

	handler.mu.Lock()
	defer handler.mu.Unlock()
	require.Equal(t, []string{"bad-apple"}, handler.calls)
}

func TestScheduler_StatsAndHistory(t *testing.T) {
	s := newTestScheduler(t, 2)

	j, err := s.CreateJob(func(any) {}, nil, nil)
	require.NoError(t, err)
	j.SetName("only-job")

	stats := s.Stats()
	require.Equal(t, 2, stats.Workers)
	require.Equal(t, 1, stats.Inflight)
	require.True(t, stats.Running)
	require.Positive(t, stats.ArenaUsed)

	require.NoError(t, s.Kick())
	s.WaitAll()

	stats = s.Stats()
	require.Zero(t, stats.Inflight)
	require.EqualValues(t, 1, stats.Graphs)

	recent := s.RecentJobs(10)
	require.Len(t, recent, 1)
	require.Equal(t, "only-job", recent[0].Name)
	require.False(t, recent[0].Panicked)
	require.False(t, recent[0].FinishedAt.Before(recent[0].StartedAt))
}

func TestScheduler_AllocServesJobData(t *testing.T) {
	s := newTestScheduler(t, 2)

	buf, err := s.Alloc(4, 4)
	require.NoError(t, err)
	require.Len(t, buf, 4)
	buf[0] = 9

	var got atomic.Int32
	_, err = s.CreateJob(func(data any) {
		b := data.([]byte)
		got.Store(int32(b[0]))
	}, buf, nil)
	require.NoError(t, err)

	require.NoError(t, s.Kick())
	s.WaitAll()
	require.EqualValues(t, 9, got.Load())

	require.NoError(t, s.Reset())
	_, err = s.Alloc(4, 4)
	require.NoError(t, err)
}

func TestScheduler_GroupCompletesWithoutBody(t *testing.T) {
	s := newTestScheduler(t, 2)

	group, err := s.CreateGroup(nil)
	require.NoError(t, err)
	require.True(t, group.IsGroup())

	require.NoError(t, s.Kick())
	s.WaitJob(group)
	require.True(t, group.Done())
}

func TestScheduler_IndependentInstances(t *testing.T) {
	a := newTestScheduler(t, 1)
	b := newTestScheduler(t, 1)

	require.NotEqual(t, a.ID(), b.ID())

	var ranA, ranB atomic.Bool
	_, err := a.CreateJob(func(any) { ranA.Store(true) }, nil, nil)
	require.NoError(t, err)
	_, err = b.CreateJob(func(any) { ranB.Store(true) }, nil, nil)
	require.NoError(t, err)

	require.NoError(t, a.Kick())
	require.NoError(t, b.Kick())
	a.WaitAll()
	b.WaitAll()

	require.True(t, ranA.Load())
	require.True(t, ranB.Load())
}

func TestScheduler_ResetInvalidatesAndReuses(t *testing.T) {
	s := newTestScheduler(t, 2)

	first, err := s.CreateJob(func(any) {}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Kick())
	s.WaitAll()
	require.NoError(t, s.Reset())

	// The same arena slot is handed out again, zeroed.
	second, err := s.CreateJob(func(any) {}, nil, nil)
	require.NoError(t, err)
	require.Same(t, first, second)
	require.False(t, second.Done())

	require.NoError(t, s.Kick())
	s.WaitAll()
	require.True(t, errors.Is(s.Kick(), ErrAfterKick))
}
