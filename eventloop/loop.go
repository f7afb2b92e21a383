package eventloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/joeycumines/logiface"

	"github.com/yuanfeng0905/luv/goroutineid"
)

// RunMode selects how [Loop.RunOnce] polls for I/O.
type RunMode int

const (
	// RunDefault blocks in poll until the next timer deadline, I/O readiness,
	// or a wake-up, if the loop is alive.
	RunDefault RunMode = iota
	// RunNoWait polls without blocking.
	RunNoWait
)

// Loop is a reactor, driven one iteration at a time by its owner.
//
// Features:
//   - Timer heap (ScheduleTimer, CancelTimer)
//   - FD readiness callbacks (RegisterFD)
//   - Cross-goroutine task submission (Submit)
//   - Unreferenced asynchronous wake-up (Wake)
//   - Reference counting of pending work (Ref, Unref, Alive)
type Loop struct {
	// Prevent copying
	_ [0]func()

	logger *logiface.Logger[logiface.Event]

	// Ingress queue (mutex guarded ring buffer)
	ingress *ingress

	// Timers, guarded by timerMu
	timerIndex map[TimerID]*timer
	timers     timerHeap

	// Timing
	tickAnchor      time.Time    // Reference time for monotonicity (initialized once, never changes)
	tickElapsedTime atomic.Int64 // Nanoseconds offset from anchor (monotonic, atomic for thread safety)

	// I/O poller
	poller fastPoller

	// State machine
	state FastState

	// Wake-up mechanism
	wakePending   atomic.Uint32
	wakePipe      int
	wakePipeWrite int
	wakeBuf       [8]byte

	// Pending work accounting, see Alive
	refs    atomic.Int64
	fdCount atomic.Int64

	// Goroutine tracking
	loopGoroutineID atomic.Uint64

	maxPollTimeout time.Duration
	timerMu        sync.Mutex
	timerSeq       uint64
	tickCount      uint64
	id             uint64

	// Task batch buffer (avoid allocation)
	batchBuf [256]func()
}

var loopIDCounter atomic.Uint64

// New creates a new event loop.
func New(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	wakeFd, wakeWriteFd, err := createWakeFd()
	if err != nil {
		return nil, err
	}

	loop := &Loop{
		id:             loopIDCounter.Add(1),
		logger:         cfg.logger,
		maxPollTimeout: cfg.maxPollTimeout,
		ingress:        newIngress(),
		timerIndex:     make(map[TimerID]*timer),
		tickAnchor:     time.Now(),
		wakePipe:       wakeFd,
		wakePipeWrite:  wakeWriteFd,
	}

	closeWake := func() {
		_ = closeFD(wakeFd)
		if wakeWriteFd != wakeFd {
			_ = closeFD(wakeWriteFd)
		}
	}

	// Initialize poller
	if err := loop.poller.Init(); err != nil {
		closeWake()
		return nil, err
	}

	// Register wake pipe, directly on the poller, so it is not referenced
	if err := loop.poller.RegisterFD(wakeFd, EventRead, func(IOEvents) {
		loop.drainWakeUpPipe()
	}); err != nil {
		_ = loop.poller.Close()
		closeWake()
		return nil, err
	}

	return loop, nil
}

// ID returns the unique (per process) id of the loop.
func (l *Loop) ID() uint64 { return l.id }

// RunOnce runs a single iteration of the loop: expired timers, submitted
// tasks, then one poll for I/O (see RunMode), then any timers that expired
// while polling. It returns whether the loop is still alive, i.e. whether
// referenced work remains.
//
// If the loop is not alive on entry, RunOnce returns false without blocking.
// If the loop is closed during the iteration, its fds are released, and
// RunOnce returns false.
func (l *Loop) RunOnce(mode RunMode) (bool, error) {
	if l.isLoopThread() {
		return false, ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		switch l.state.Load() {
		case StateTerminated, StateTerminating:
			return false, ErrLoopTerminated
		}
		return false, ErrLoopAlreadyRunning
	}

	l.loopGoroutineID.Store(goroutineid.Current())

	var err error
	if l.Alive() {
		err = l.tick(mode)
	} else {
		l.updateTickTime()
	}

	l.loopGoroutineID.Store(0)

	if !l.state.TryTransition(StateRunning, StateAwake) {
		// Close was called during the iteration
		l.state.Store(StateTerminated)
		l.closeFDs()
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return l.Alive(), nil
}

// Run runs the loop until it is no longer alive, ctx is done, or the loop is
// closed (in which case it returns nil).
func (l *Loop) Run(ctx context.Context) error {
	// Start context watcher goroutine to wake loop on cancellation
	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			l.wakeup()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		alive, err := l.RunOnce(RunDefault)
		if err != nil {
			return err
		}
		if !alive {
			return nil
		}
	}
}

// tick is a single iteration of the event loop.
func (l *Loop) tick(mode RunMode) error {
	l.tickCount++

	// time.Since(tickAnchor) uses the monotonic clock when available
	l.updateTickTime()

	// Execute expired timers
	l.runTimers()

	// Process submitted tasks with budget
	l.processIngress()

	// Poll for I/O
	err := l.poll(mode)

	// Timers that expired while polling
	l.updateTickTime()
	l.runTimers()

	return err
}

// processIngress processes submitted tasks, with budget.
func (l *Loop) processIngress() {
	const budget = 1024

	for processed := 0; processed < budget; {
		n := l.ingress.popBatch(l.batchBuf[:min(len(l.batchBuf), budget-processed)])
		if n == 0 {
			return
		}
		for i := 0; i < n; i++ {
			l.safeExecute(l.batchBuf[i])
			l.batchBuf[i] = nil // Clear for GC
		}
		processed += n
	}
}

// poll performs the (possibly blocking) poll.
func (l *Loop) poll(mode RunMode) error {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		// closed by a callback
		return nil
	}

	// Tasks submitted before the transition won't trigger a wake-up, so they
	// must be checked after it.
	timeout := 0
	if mode == RunDefault && l.ingress.length() == 0 && l.Alive() {
		timeout = l.calculateTimeout()
	}

	_, err := l.poller.PollIO(timeout)

	l.state.TryTransition(StateSleeping, StateRunning)

	if err != nil {
		l.logger.Crit().
			Err(err).
			Uint64(`loop`, l.id).
			Log(`eventloop: poll failed`)
		return err
	}

	return nil
}

// Alive reports whether the loop has referenced work pending: active timers,
// registered fds, submitted tasks, or references taken via Ref.
func (l *Loop) Alive() bool {
	return l.refs.Load() > 0 ||
		l.fdCount.Load() > 0 ||
		l.ingress.length() > 0 ||
		l.activeTimers() > 0
}

// Ref marks the loop as having pending work, that is tracked outside the loop,
// keeping it alive until a matching Unref.
func (l *Loop) Ref() { l.refs.Add(1) }

// Unref releases a reference taken via Ref.
func (l *Loop) Unref() {
	if l.refs.Add(-1) < 0 {
		panic(`eventloop: unbalanced unref`)
	}
}

// Wake causes a blocked poll to return promptly, or, if the loop is not
// currently polling, the next poll to return immediately. It is safe to call
// from any goroutine, and does not keep the loop alive.
func (l *Loop) Wake() error {
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}
	l.wakeup()
	return nil
}

// Submit queues a task to run on the loop, during the next iteration. It is
// safe to call from any goroutine. Queued tasks keep the loop alive.
func (l *Loop) Submit(task func()) error {
	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}

	l.ingress.push(task)

	// Wake if sleeping
	if l.state.Load() == StateSleeping {
		l.wakeup()
	}

	return nil
}

// wakeup writes to the wake-up pipe, at most once per drain.
func (l *Loop) wakeup() {
	if !l.wakePending.CompareAndSwap(0, 1) {
		return
	}

	// PERFORMANCE: Native endianness, no binary.LittleEndian overhead
	var one uint64 = 1
	buf := (*[8]byte)(unsafe.Pointer(&one))[:]

	if _, err := writeFD(l.wakePipeWrite, buf); err != nil {
		// Expected during shutdown (EBADF, EPIPE), allow future retries
		l.wakePending.Store(0)
	}
}

// drainWakeUpPipe drains the wake-up pipe.
func (l *Loop) drainWakeUpPipe() {
	for {
		if _, err := readFD(l.wakePipe, l.wakeBuf[:]); err != nil {
			break
		}
	}
	l.wakePending.Store(0)
}

// Close terminates the loop. If called during an iteration, the fds are
// released once the iteration completes. Timers, fds and tasks still pending
// are discarded. A second call returns ErrLoopTerminated.
func (l *Loop) Close() error {
	for {
		currentState := l.state.Load()
		if currentState == StateTerminated || currentState == StateTerminating {
			return ErrLoopTerminated
		}

		if l.state.TryTransition(currentState, StateTerminating) {
			if currentState == StateAwake {
				l.state.Store(StateTerminated)
				l.closeFDs()
				return nil
			}
			l.wakeup()
			return nil
		}
	}
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// CurrentTickTime returns the cached time for the current tick.
// The returned value uses the monotonic clock and is safe to use for timer calculations.
func (l *Loop) CurrentTickTime() time.Time {
	return l.tickAnchor.Add(time.Duration(l.tickElapsedTime.Load()))
}

func (l *Loop) updateTickTime() {
	l.tickElapsedTime.Store(int64(time.Since(l.tickAnchor)))
}

// safeExecute executes a task with panic recovery.
func (l *Loop) safeExecute(fn func()) {
	if fn == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.logger.Err().
				Err(PanicError{Value: r}).
				Uint64(`loop`, l.id).
				Log(`eventloop: task panicked`)
		}
	}()

	fn()
}

// closeFDs closes file descriptors.
func (l *Loop) closeFDs() {
	_ = l.poller.Close()
	_ = closeFD(l.wakePipe)
	if l.wakePipeWrite != l.wakePipe {
		_ = closeFD(l.wakePipeWrite)
	}
}

// isLoopThread checks if we're on the goroutine running an iteration.
func (l *Loop) isLoopThread() bool {
	loopID := l.loopGoroutineID.Load()
	if loopID == 0 {
		return false
	}
	return goroutineid.Current() == loopID
}
