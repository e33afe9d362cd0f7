package core

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestReadyQueue_FIFOOrder verifies pop order matches push order
// Given: A queue with three jobs pushed in sequence
// When: TryPop is called three times
// Then: Jobs come back in FIFO order
func TestReadyQueue_FIFOOrder(t *testing.T) {
	// Arrange
	q := NewReadyQueue()
	a, b, c := &Job{name: "a"}, &Job{name: "b"}, &Job{name: "c"}

	// Act
	q.Push(a)
	q.Push(b)
	q.Push(c)

	// Assert
	for _, want := range []*Job{a, b, c} {
		got, ok := q.TryPop()
		if !ok {
			t.Fatal("TryPop on non-empty queue returned false")
		}
		if got != want {
			t.Fatalf("TryPop = %q, want %q", got.Name(), want.Name())
		}
	}
	if _, ok := q.TryPop(); ok {
		t.Fatal("TryPop on drained queue returned a job")
	}
}

// TestReadyQueue_PushManyAndLen verifies batch push
// Given: An empty queue
// When: PushMany adds five jobs
// Then: Len reports five and all jobs pop in order
func TestReadyQueue_PushManyAndLen(t *testing.T) {
	// Arrange
	q := NewReadyQueue()
	jobs := make([]*Job, 5)
	for i := range jobs {
		jobs[i] = &Job{index: i}
	}

	// Act
	q.PushMany(jobs)

	// Assert
	if got := q.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}
	for i := 0; i < 5; i++ {
		j, ok := q.TryPop()
		if !ok || j.index != i {
			t.Fatalf("pop %d: got %v ok=%v", i, j, ok)
		}
	}
}

// TestReadyQueue_PopWaitWakesOnPush verifies the wake protocol
// Given: A goroutine blocked in PopWait on an empty queue
// When: A job is pushed
// Then: The waiter receives it
func TestReadyQueue_PopWaitWakesOnPush(t *testing.T) {
	// Arrange
	q := NewReadyQueue()
	never := func() bool { return false }
	got := make(chan *Job, 1)

	go func() {
		j, ok := q.PopWait(never, never)
		if ok {
			got <- j
		}
	}()

	// Act
	time.Sleep(10 * time.Millisecond)
	want := &Job{name: "wake"}
	q.Push(want)

	// Assert
	select {
	case j := <-got:
		if j != want {
			t.Fatalf("PopWait returned %q, want %q", j.Name(), want.Name())
		}
	case <-time.After(time.Second):
		t.Fatal("PopWait was not woken by Push")
	}
}

// TestReadyQueue_PopWaitGiveUp verifies abort on broadcast
// Given: Several goroutines blocked in PopWait
// When: The give-up predicate flips and Broadcast is called
// Then: All waiters return with ok == false
func TestReadyQueue_PopWaitGiveUp(t *testing.T) {
	// Arrange
	q := NewReadyQueue()
	var stop atomic.Bool
	never := func() bool { return false }

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := q.PopWait(stop.Load, never); ok {
				t.Error("PopWait returned a job after give-up")
			}
		}()
	}

	// Act
	time.Sleep(10 * time.Millisecond)
	stop.Store(true)
	q.Broadcast()

	// Assert
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("PopWait waiters did not observe the give-up flag")
	}
}

// TestReadyQueue_PopWaitHold verifies the pause predicate
// Given: A queued job and a waiter whose hold predicate is true
// When: The hold predicate flips to false and Broadcast is called
// Then: The waiter only then receives the job
func TestReadyQueue_PopWaitHold(t *testing.T) {
	// Arrange
	q := NewReadyQueue()
	var paused atomic.Bool
	paused.Store(true)
	never := func() bool { return false }

	q.Push(&Job{name: "held"})

	got := make(chan *Job, 1)
	go func() {
		j, _ := q.PopWait(never, paused.Load)
		got <- j
	}()

	// Assert: held back while paused
	select {
	case <-got:
		t.Fatal("PopWait returned a job while held")
	case <-time.After(50 * time.Millisecond):
	}

	// Act
	paused.Store(false)
	q.Broadcast()

	// Assert
	select {
	case j := <-got:
		if j.Name() != "held" {
			t.Fatalf("PopWait returned %q, want held", j.Name())
		}
	case <-time.After(time.Second):
		t.Fatal("PopWait was not released when the hold lifted")
	}
}

// TestReadyQueue_Clear verifies queued jobs are dropped
// Given: A queue with jobs
// When: Clear is called
// Then: The queue is empty
func TestReadyQueue_Clear(t *testing.T) {
	// Arrange
	q := NewReadyQueue()
	q.PushMany([]*Job{{}, {}, {}})

	// Act
	q.Clear()

	// Assert
	if got := q.Len(); got != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", got)
	}
}
