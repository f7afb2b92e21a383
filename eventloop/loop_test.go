package eventloop

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestLoop(t *testing.T, opts ...LoopOption) *Loop {
	t.Helper()
	loop, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = loop.Close() })
	return loop
}

func TestLoop_RunOnceIdleReturnsImmediately(t *testing.T) {
	loop := newTestLoop(t)
	require.False(t, loop.Alive())

	start := time.Now()
	alive, err := loop.RunOnce(RunDefault)
	require.NoError(t, err)
	assert.False(t, alive)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StateAwake, loop.State())
}

func TestLoop_TimersFireInDeadlineThenScheduleOrder(t *testing.T) {
	loop := newTestLoop(t)

	var order []string
	record := func(name string) func() {
		return func() { order = append(order, name) }
	}
	_, err := loop.ScheduleTimer(30*time.Millisecond, record("a"))
	require.NoError(t, err)
	_, err = loop.ScheduleTimer(10*time.Millisecond, record("b"))
	require.NoError(t, err)
	_, err = loop.ScheduleTimer(10*time.Millisecond, record("c"))
	require.NoError(t, err)

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, []string{"b", "c", "a"}, order)
	assert.False(t, loop.Alive())
}

func TestLoop_CancelTimer(t *testing.T) {
	loop := newTestLoop(t)

	var fired atomic.Bool
	id, err := loop.ScheduleTimer(time.Millisecond, func() { fired.Store(true) })
	require.NoError(t, err)
	require.True(t, loop.Alive())

	require.NoError(t, loop.CancelTimer(id))
	require.ErrorIs(t, loop.CancelTimer(id), ErrTimerNotFound)
	assert.False(t, loop.Alive())

	require.NoError(t, loop.Run(context.Background()))
	assert.False(t, fired.Load())
}

func TestLoop_TimerScheduledByTimerRunsOnALaterPass(t *testing.T) {
	loop := newTestLoop(t)

	var count int
	var rearm func()
	rearm = func() {
		count++
		if count < 3 {
			_, _ = loop.ScheduleTimer(0, rearm)
		}
	}
	_, err := loop.ScheduleTimer(0, rearm)
	require.NoError(t, err)

	alive, err := loop.RunOnce(RunNoWait)
	require.NoError(t, err)
	// first pass runs the original, second pass (after poll) runs the first rearm
	assert.Equal(t, 2, count)
	assert.True(t, alive)

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, 3, count)
}

func TestLoop_SubmitFromManyGoroutines(t *testing.T) {
	loop := newTestLoop(t)

	const producers = 8
	const tasksPerProducer = 500
	var executed atomic.Int64

	loop.Ref()
	var g errgroup.Group
	for range producers {
		g.Go(func() error {
			for range tasksPerProducer {
				if err := loop.Submit(func() { executed.Add(1) }); err != nil {
					return err
				}
			}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		_ = loop.Submit(loop.Unref)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, loop.Run(ctx))
	require.NoError(t, g.Wait())
	assert.Equal(t, int64(producers*tasksPerProducer), executed.Load())
}

func TestLoop_WakeInterruptsBlockingPoll(t *testing.T) {
	loop := newTestLoop(t, WithMaxPollTimeout(5*time.Second))

	loop.Ref()
	defer loop.Unref()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = loop.Wake()
	}()

	start := time.Now()
	alive, err := loop.RunOnce(RunDefault)
	require.NoError(t, err)
	assert.True(t, alive)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLoop_WakeBeforePollIsNotLost(t *testing.T) {
	loop := newTestLoop(t, WithMaxPollTimeout(5*time.Second))

	loop.Ref()
	defer loop.Unref()

	require.NoError(t, loop.Wake())
	start := time.Now()
	_, err := loop.RunOnce(RunDefault)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLoop_WakeDoesNotKeepLoopAlive(t *testing.T) {
	loop := newTestLoop(t)
	require.NoError(t, loop.Wake())
	assert.False(t, loop.Alive())
	alive, err := loop.RunOnce(RunDefault)
	require.NoError(t, err)
	assert.False(t, alive)
}

func TestLoop_NoWaitDoesNotBlock(t *testing.T) {
	loop := newTestLoop(t, WithMaxPollTimeout(5*time.Second))
	loop.Ref()
	defer loop.Unref()

	start := time.Now()
	alive, err := loop.RunOnce(RunNoWait)
	require.NoError(t, err)
	assert.True(t, alive)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLoop_ReentrantRunOnce(t *testing.T) {
	loop := newTestLoop(t)

	var inner error
	require.NoError(t, loop.Submit(func() {
		_, inner = loop.RunOnce(RunNoWait)
	}))
	_, err := loop.RunOnce(RunNoWait)
	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrReentrantRun)
}

func TestLoop_Close(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	require.NoError(t, loop.Close())
	assert.Equal(t, StateTerminated, loop.State())
	assert.ErrorIs(t, loop.Close(), ErrLoopTerminated)

	_, err = loop.RunOnce(RunDefault)
	assert.ErrorIs(t, err, ErrLoopTerminated)
	assert.ErrorIs(t, loop.Submit(func() {}), ErrLoopTerminated)
	assert.ErrorIs(t, loop.Wake(), ErrLoopTerminated)
	_, err = loop.ScheduleTimer(time.Second, func() {})
	assert.ErrorIs(t, err, ErrLoopTerminated)
}

func TestLoop_CloseDuringIteration(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	require.NoError(t, loop.Submit(func() {
		assert.NoError(t, loop.Close())
	}))
	_, err = loop.ScheduleTimer(time.Hour, func() {})
	require.NoError(t, err)

	alive, err := loop.RunOnce(RunDefault)
	require.NoError(t, err)
	assert.False(t, alive)
	assert.Equal(t, StateTerminated, loop.State())
}

func TestLoop_RunStopsOnContextCancel(t *testing.T) {
	loop := newTestLoop(t, WithMaxPollTimeout(5*time.Second))
	loop.Ref()
	defer loop.Unref()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := loop.Run(ctx)
	require.True(t, errors.Is(err, context.Canceled), err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLoop_PanicIsRecoveredAndLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
	loop := newTestLoop(t, WithLogger(logger))

	var after bool
	require.NoError(t, loop.Submit(func() { panic("boom") }))
	require.NoError(t, loop.Submit(func() { after = true }))

	require.NoError(t, loop.Run(context.Background()))
	assert.True(t, after)
	assert.Contains(t, buf.String(), `eventloop: task panicked`)
	assert.Contains(t, buf.String(), `boom`)
}

func TestLoop_RefUnref(t *testing.T) {
	loop := newTestLoop(t)
	loop.Ref()
	assert.True(t, loop.Alive())
	loop.Unref()
	assert.False(t, loop.Alive())
	assert.Panics(t, loop.Unref)
}

func TestWithMaxPollTimeout_invalid(t *testing.T) {
	_, err := New(WithMaxPollTimeout(0))
	require.Error(t, err)
}

func TestLoopState_String(t *testing.T) {
	for state, want := range map[LoopState]string{
		StateAwake:       "Awake",
		StateRunning:     "Running",
		StateSleeping:    "Sleeping",
		StateTerminating: "Terminating",
		StateTerminated:  "Terminated",
		LoopState(99):    "Unknown",
	} {
		assert.Equal(t, want, state.String())
	}
}

func TestPanicError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	assert.ErrorIs(t, PanicError{Value: cause}, cause)
	assert.Nil(t, PanicError{Value: "str"}.Unwrap())
	assert.Contains(t, PanicError{Value: "str"}.Error(), "str")
}
