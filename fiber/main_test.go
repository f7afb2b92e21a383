package fiber

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuanfeng0905/luv/eventloop"
)

func newTestLogger(buf *bytes.Buffer) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(buf), stumpy.WithTimeField(``)),
		stumpy.L.WithLevel(logiface.LevelDebug),
	).Logger()
}

// newTimerContext returns a context that notifies its waiters, once, after d.
func newTimerContext(t *testing.T, s *Scheduler, d time.Duration) *Context {
	t.Helper()
	c := newStarted(t, s, nil, 0)
	loop, err := s.Loop()
	require.NoError(t, err)
	_, err = loop.ScheduleTimer(d, func() {
		_, err := c.Notify(0)
		assert.NoError(t, err)
	})
	require.NoError(t, err)
	return c
}

func TestScheduler_driveLoopReturnsWhenIdle(t *testing.T) {
	s := newTestScheduler(t)
	m := s.Main()

	start := time.Now()
	n, err := s.Run(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, m.Active())
	assert.Nil(t, m.Target())
	assert.Zero(t, s.idle.Waiting())
	assert.Empty(t, s.Suspended())
}

func TestScheduler_driveLoopReturnsWhenRoused(t *testing.T) {
	// timer deadlines are relative to the cached tick time, at or after New
	start := time.Now()
	s := newTestScheduler(t)
	m := s.Main()
	loop, err := s.Loop()
	require.NoError(t, err)

	// keeps the reactor alive, well past the test
	keepAlive, err := loop.ScheduleTimer(time.Hour, func() {})
	require.NoError(t, err)
	defer func() { _ = loop.CancelTimer(keepAlive) }()

	_, err = loop.ScheduleTimer(10*time.Millisecond, func() {
		assert.NoError(t, m.Rouse(nil))
	})
	require.NoError(t, err)

	_, err = s.Run(nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, m.Active())
	assert.Zero(t, s.idle.Waiting())
}

func TestScheduler_mainRouseWakesBlockedPoll(t *testing.T) {
	s := newTestScheduler(t)
	m := s.Main()
	loop, err := s.Loop()
	require.NoError(t, err)

	loop.Ref()
	defer loop.Unref()

	go func() {
		time.Sleep(20 * time.Millisecond)
		// rouse from the loop, the only place other goroutines may do so
		assert.NoError(t, loop.Submit(func() {
			assert.NoError(t, m.Rouse(nil))
		}))
	}()

	start := time.Now()
	_, err = s.Run(nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.True(t, m.Active())
}

func TestScheduler_runUntilTargetNotifies(t *testing.T) {
	start := time.Now()
	s := newTestScheduler(t)
	timer := newTimerContext(t, s, 20*time.Millisecond)
	require.NoError(t, timer.Stack().Push(`ignored`))

	n, err := s.Run(timer)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.True(t, s.Main().Active())
	assert.Zero(t, timer.Waiting())
}

func TestScheduler_runReturnsValuesNotifiedToMain(t *testing.T) {
	s := newTestScheduler(t)
	source := newStarted(t, s, nil, 0)
	loop, err := s.Loop()
	require.NoError(t, err)
	_, err = loop.ScheduleTimer(time.Millisecond, func() {
		assert.NoError(t, source.Stack().Push(`a`, `b`))
		woken, err := source.Notify(All)
		assert.NoError(t, err)
		assert.Equal(t, 1, woken)
	})
	require.NoError(t, err)

	n, err := s.Run(source)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []any{`a`, `b`}, s.Main().Stack().Pop(n))
}

func TestScheduler_driveLoopWarnsOnStuckContexts(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(t, WithLogger(newTestLogger(&buf)))

	never := newStarted(t, s, nil, 0)
	w := newStarted(t, s, nil, 0)
	_, err := w.Await(never)
	require.NoError(t, err)

	for range 3 {
		_, err := s.Run(nil)
		require.NoError(t, err)
	}

	const msg = `fiber: reactor idle with contexts still suspended`
	assert.Equal(t, 1, strings.Count(buf.String(), msg), buf.String())
	assert.Contains(t, buf.String(), `fiber: await`)
}

func TestScheduler_stuckWarningsUnlimited(t *testing.T) {
	var buf bytes.Buffer
	s := newTestScheduler(t,
		WithLogger(newTestLogger(&buf)),
		WithStuckWarningRates(nil),
	)

	never := newStarted(t, s, nil, 0)
	w := newStarted(t, s, nil, 0)
	_, err := w.Await(never)
	require.NoError(t, err)

	for range 3 {
		_, err := s.Run(nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, strings.Count(buf.String(), `fiber: reactor idle with contexts still suspended`))
}

func TestScheduler_driveLoopSurfacesReactorErrors(t *testing.T) {
	loop, err := eventloop.New()
	require.NoError(t, err)
	s := newTestScheduler(t, WithLoop(loop))
	require.NoError(t, loop.Close())

	_, err = s.Run(nil)
	require.ErrorIs(t, err, eventloop.ErrLoopTerminated)
	assert.True(t, s.Main().Active())
	assert.Zero(t, s.idle.Waiting())
}

func TestScheduler_closed(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	loop, err := s.Loop()
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Equal(t, eventloop.StateTerminated, loop.State())
	assert.ErrorIs(t, s.Close(), ErrSchedulerClosed)

	_, err = s.Run(nil)
	assert.ErrorIs(t, err, ErrSchedulerClosed)

	_, err = s.Spawn(`late`, func(*Context) error { return nil })
	assert.ErrorIs(t, err, ErrSchedulerClosed)
}

func TestScheduler_withLoopIsNotClosed(t *testing.T) {
	loop, err := eventloop.New()
	require.NoError(t, err)
	defer loop.Close()

	s, err := New(WithLoop(loop))
	require.NoError(t, err)
	got, err := s.Loop()
	require.NoError(t, err)
	assert.Same(t, loop, got)

	require.NoError(t, s.Close())
	assert.Equal(t, eventloop.StateAwake, loop.State())
}

func TestScheduler_loopIsCreatedOnce(t *testing.T) {
	s := newTestScheduler(t, WithLoopOptions(eventloop.WithMaxPollTimeout(time.Second)))
	a, err := s.Loop()
	require.NoError(t, err)
	b, err := s.Loop()
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestNew_invalidOptions(t *testing.T) {
	_, err := New(WithStackLimit(0))
	assert.Error(t, err)

	_, err = New(WithLoop(nil))
	assert.Error(t, err)

	_, err = New(WithStuckWarningRates(map[time.Duration]int{time.Second: 0}))
	assert.Error(t, err)

	_, err = New(WithLoopOptions(eventloop.WithMaxPollTimeout(-1)))
	assert.Error(t, err)
}

func TestScheduler_currentDefaultsToMain(t *testing.T) {
	s := newTestScheduler(t)
	assert.Same(t, s.Main(), s.Current())

	ch := make(chan *Context)
	go func() { ch <- s.Current() }()
	assert.Same(t, s.Main(), <-ch)
}

func TestDefault(t *testing.T) {
	s := Default()
	require.NotNil(t, s)
	assert.Same(t, s, Default())
	loop, err := s.Loop()
	require.NoError(t, err)
	assert.NotNil(t, loop)
	assert.True(t, s.Main().Active())
}
