package eventloop

import (
	"container/heap"
	"time"
)

// TimerID identifies a scheduled timer, see Loop.ScheduleTimer.
type TimerID uint64

// timer represents a scheduled task
type timer struct {
	when  time.Time
	fn    func()
	seq   uint64
	id    TimerID
	index int
}

// timerHeap is a min-heap of timers, ordered by deadline, then by the order
// they were scheduled in.
type timerHeap []*timer

// Implement heap.Interface for timerHeap
func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].seq < h[j].seq
	}
	return h[i].when.Before(h[j].when)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*timer)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	x.index = -1
	*h = old[:n-1]
	return x
}

// ScheduleTimer schedules fn to run on the loop, once delay has elapsed,
// relative to the current tick time. Active timers keep the loop alive.
func (l *Loop) ScheduleTimer(delay time.Duration, fn func()) (TimerID, error) {
	if l.state.Load() == StateTerminated {
		return 0, ErrLoopTerminated
	}
	if delay < 0 {
		delay = 0
	}

	l.timerMu.Lock()
	l.timerSeq++
	t := &timer{
		when: l.CurrentTickTime().Add(delay),
		fn:   fn,
		seq:  l.timerSeq,
		id:   TimerID(l.timerSeq),
	}
	heap.Push(&l.timers, t)
	l.timerIndex[t.id] = t
	l.timerMu.Unlock()

	// the next poll may need a shorter timeout
	if l.state.Load() == StateSleeping {
		l.wakeup()
	}

	return t.id, nil
}

// CancelTimer cancels a timer that has not yet fired.
func (l *Loop) CancelTimer(id TimerID) error {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	t, ok := l.timerIndex[id]
	if !ok {
		return ErrTimerNotFound
	}
	delete(l.timerIndex, id)
	heap.Remove(&l.timers, t.index)
	return nil
}

// runTimers executes all expired timers, that were scheduled before this
// call. Timers scheduled by callbacks run no sooner than the next pass.
func (l *Loop) runTimers() {
	now := l.CurrentTickTime()
	l.timerMu.Lock()
	limit := l.timerSeq
	for len(l.timers) > 0 {
		t := l.timers[0]
		if t.when.After(now) || t.seq > limit {
			break
		}
		heap.Pop(&l.timers)
		delete(l.timerIndex, t.id)
		l.timerMu.Unlock()
		l.safeExecute(t.fn)
		l.timerMu.Lock()
	}
	l.timerMu.Unlock()
}

// activeTimers returns the number of scheduled timers.
func (l *Loop) activeTimers() int {
	l.timerMu.Lock()
	defer l.timerMu.Unlock()
	return len(l.timers)
}

// calculateTimeout determines how long to block in poll, in milliseconds.
func (l *Loop) calculateTimeout() int {
	maxDelay := l.maxPollTimeout

	// Cap by next timer
	l.timerMu.Lock()
	if len(l.timers) > 0 {
		delay := time.Until(l.timers[0].when)
		if delay < 0 {
			delay = 0
		}
		if delay < maxDelay {
			maxDelay = delay
		}
	}
	l.timerMu.Unlock()

	// Ceiling rounding: if 0 < delta < 1ms, round up to 1ms
	if maxDelay > 0 && maxDelay < time.Millisecond {
		return 1
	}

	return int(maxDelay.Milliseconds())
}
