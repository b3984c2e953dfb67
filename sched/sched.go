// File: sched/sched.go
// Package sched implements the deferred/timer queue consumed by the
// dispatch loop: absolute-time timers plus run-next-iteration jobs.
// License: Apache-2.0

package sched

import (
	"container/heap"
	"time"

	"github.com/eapache/queue"
)

// Timer is a handle to a scheduled item, usable to cancel it.
type Timer struct {
	when  time.Time
	fn    func()
	index int // heap index, -1 once fired or canceled
}

// Queue holds absolute-time timers and run-soon jobs and implements
// api.Deferred. Single-threaded by contract: it is mutated only on the
// dispatch loop's thread.
type Queue struct {
	timers timerHeap
	soon   *queue.Queue // of func()
	now    func() time.Time
}

// New creates an empty queue using the wall clock.
func New() *Queue {
	return &Queue{soon: queue.New(), now: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (q *Queue) SetClock(now func() time.Time) { q.now = now }

// At schedules fn for the absolute time t.
func (q *Queue) At(t time.Time, fn func()) *Timer {
	tm := &Timer{when: t, fn: fn, index: -1}
	heap.Push(&q.timers, tm)
	return tm
}

// After schedules fn to run d from now.
func (q *Queue) After(d time.Duration, fn func()) *Timer {
	return q.At(q.now().Add(d), fn)
}

// Soon queues fn for execution on the next loop iteration.
func (q *Queue) Soon(fn func()) { q.soon.Add(fn) }

// Cancel drops a pending timer. Canceling a fired or already-canceled
// timer is a no-op.
func (q *Queue) Cancel(t *Timer) {
	if t == nil || t.index < 0 {
		return
	}
	heap.Remove(&q.timers, t.index)
	t.index = -1
	t.fn = nil
}

// Len returns the number of pending items.
func (q *Queue) Len() int { return len(q.timers) + q.soon.Length() }

// NextDelay returns the time until the next due item. Run-soon jobs are
// always due immediately.
func (q *Queue) NextDelay() (time.Duration, bool) {
	if q.soon.Length() > 0 {
		return 0, true
	}
	if len(q.timers) == 0 {
		return 0, false
	}
	return q.timers[0].when.Sub(q.now()), true
}

// RunDue executes every item due at the time of the call. Run-soon jobs
// queued from inside a job run on the next iteration, not this one.
func (q *Queue) RunDue() {
	n := q.soon.Length()
	for i := 0; i < n; i++ {
		fn := q.soon.Remove().(func())
		fn()
	}
	now := q.now()
	for len(q.timers) > 0 && !q.timers[0].when.After(now) {
		tm := heap.Pop(&q.timers).(*Timer)
		tm.index = -1
		if tm.fn != nil {
			fn := tm.fn
			tm.fn = nil
			fn()
		}
	}
}

// timerHeap orders timers by due time.
type timerHeap []*Timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	tm := x.(*Timer)
	tm.index = len(*h)
	*h = append(*h, tm)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	tm := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return tm
}
