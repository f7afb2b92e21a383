package fiber

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"

	"github.com/yuanfeng0905/luv/eventloop"
	"github.com/yuanfeng0905/luv/goroutineid"
)

// Scheduler is the state shared by a tree of contexts: the reactor, the main
// context, and the association of goroutines to contexts.
type Scheduler struct {
	logger  *logiface.Logger[logiface.Event]
	opts    *schedulerOptions
	limiter *catrate.Limiter

	loopOnce sync.Once
	loop     *eventloop.Loop
	loopErr  error
	ownsLoop bool

	main *Context
	idle *Context

	// guards the maps, which are read by fiber goroutines (bound) and
	// introspection (pinned, suspended)
	mu        sync.Mutex
	bound     map[uint64]*Context
	pinned    map[*Context]struct{}
	suspended map[*Context]struct{}

	nextID atomic.Uint64
	closed atomic.Bool
}

var (
	defaultOnce      sync.Once
	defaultScheduler *Scheduler
)

// Default returns the process-wide Scheduler, creating it on first use. Its
// main context is bound to the goroutine that first calls Default, which is
// the goroutine that must drive it. Default panics if the scheduler cannot be
// created.
func Default() *Scheduler {
	defaultOnce.Do(func() {
		s, err := New()
		if err != nil {
			panic(err)
		}
		defaultScheduler = s
	})
	return defaultScheduler
}

// New creates a Scheduler, with its reactor and main context. The main
// context is active, and bound to the calling goroutine.
func New(opts ...Option) (*Scheduler, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	limiter, err := newLimiter(cfg.stuckRates)
	if err != nil {
		return nil, err
	}

	s := &Scheduler{
		logger:    cfg.logger,
		opts:      cfg,
		limiter:   limiter,
		bound:     make(map[uint64]*Context),
		pinned:    make(map[*Context]struct{}),
		suspended: make(map[*Context]struct{}),
	}

	// the reactor must exist before the main context
	if _, err := s.Loop(); err != nil {
		return nil, err
	}

	s.main = s.NewContext(mainCapabilities{}, NewEnvironment(cfg.stackLimit))
	s.main.name = `main`
	s.main.flags = FlagActive
	s.bind(goroutineid.Current(), s.main)

	// target of Run(nil), never notified
	s.idle = s.NewContext(nil, nil)
	s.idle.name = `idle`

	return s, nil
}

func newLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	if len(rates) == 0 {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fiber: invalid stuck warning rates: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// Loop returns the reactor, creating it on first call. A creation error is
// cached, and returned by every call.
func (s *Scheduler) Loop() (*eventloop.Loop, error) {
	s.loopOnce.Do(func() {
		if s.opts.loop != nil {
			s.loop = s.opts.loop
			return
		}
		var opts []eventloop.LoopOption
		if s.logger != nil {
			opts = append(opts, eventloop.WithLogger(s.logger))
		}
		opts = append(opts, s.opts.loopOptions...)
		s.loop, s.loopErr = eventloop.New(opts...)
		s.ownsLoop = s.loopErr == nil
	})
	return s.loop, s.loopErr
}

// Main returns the main context, which drives the reactor whenever it awaits.
func (s *Scheduler) Main() *Context { return s.main }

// NewContext creates a context, with the given variant behavior and
// environment. Nil caps behaves like a zero CapabilityFuncs: await and rouse
// return immediately, and close is DefaultClose.
//
// The context is neither active nor queued. Rouse starts it.
func (s *Scheduler) NewContext(caps Capabilities, env *Environment) *Context {
	if caps == nil {
		caps = CapabilityFuncs{}
	}
	return &Context{
		sched: s,
		caps:  caps,
		env:   env,
		id:    s.nextID.Add(1),
	}
}

// Current returns the context bound to the calling goroutine, or the main
// context.
func (s *Scheduler) Current() *Context {
	gid := goroutineid.Current()
	s.mu.Lock()
	c := s.bound[gid]
	s.mu.Unlock()
	if c == nil {
		return s.main
	}
	return c
}

// Run drives the reactor, via the main context, until it is roused while
// waiting on target, or the reactor has no work left. A nil target waits on
// nothing, i.e. runs until idle, or until something rouses the main context.
// It must be called from the goroutine bound to the main context.
func (s *Scheduler) Run(target *Context) (int, error) {
	if s.closed.Load() {
		return 0, ErrSchedulerClosed
	}
	if target == nil {
		target = s.idle
	}
	return s.main.Await(target)
}

// Pinned returns the number of pinned contexts.
func (s *Scheduler) Pinned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pinned)
}

// Suspended returns the contexts currently waiting on some target, ordered
// by id.
func (s *Scheduler) Suspended() []*Context {
	s.mu.Lock()
	contexts := make([]*Context, 0, len(s.suspended))
	for c := range s.suspended {
		contexts = append(contexts, c)
	}
	s.mu.Unlock()
	slices.SortFunc(contexts, func(a, b *Context) int { return cmp.Compare(a.id, b.id) })
	return contexts
}

// Close tears down the scheduler. Suspended fibers are closed, unwinding
// their goroutines, and the reactor is closed, unless it was provided via
// WithLoop. Other contexts left suspended are logged, as a leak. It must be
// called from the goroutine bound to the main context, while it is active.
func (s *Scheduler) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSchedulerClosed
	}

	var leaked int
	deadlocked := len(s.Deadlocked())
	for _, c := range s.Suspended() {
		if _, ok := c.caps.(*fiberCapabilities); ok && !c.Closed() {
			_ = c.Close()
			continue
		}
		leaked++
	}
	if leaked != 0 {
		s.logger.Warning().
			Int(`suspended`, leaked).
			Int(`deadlocked`, deadlocked).
			Log(`fiber: scheduler closed with contexts still suspended`)
	}

	if s.ownsLoop {
		return s.loop.Close()
	}
	return nil
}

func (s *Scheduler) bind(gid uint64, c *Context) {
	if c.env != nil {
		c.env.gid = gid
	}
	s.mu.Lock()
	s.bound[gid] = c
	s.mu.Unlock()
}

// unbind removes the association of gid, if it is still to c.
func (s *Scheduler) unbind(gid uint64, c *Context) {
	if gid == 0 {
		return
	}
	s.mu.Lock()
	if s.bound[gid] == c {
		delete(s.bound, gid)
	}
	s.mu.Unlock()
}

// wake interrupts a blocked reactor poll, see mainCapabilities.Rouse.
func (s *Scheduler) wake() {
	if s.loop != nil {
		_ = s.loop.Wake()
	}
}

func (s *Scheduler) suspendedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.suspended)
}
