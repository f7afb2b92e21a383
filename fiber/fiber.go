package fiber

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"slices"

	"github.com/yuanfeng0905/luv/goroutineid"
)

// ErrNotFinished is returned by Join when the joining context was roused
// before the fiber finished.
var ErrNotFinished = errors.New("fiber: woken before the fiber finished")

// fiberCapabilities runs a context on its own goroutine, which only proceeds
// while it holds the run token. The token passes to the fiber on rouse, and
// back to the rouser when the fiber awaits or finishes, so rouse blocks like
// resuming a coroutine.
type fiberCapabilities struct {
	fn      func(c *Context) error
	resume  chan struct{}
	yield   chan struct{}
	results []any
	err     error
	done    bool
	killed  bool
}

// Spawn creates a fiber, which will call fn on its own goroutine. The fiber
// is queued on the main context, so it starts the next time the main context
// drives the reactor, or when it is roused directly.
//
// Once fn returns, every value left on the fiber's stack is delivered to the
// contexts waiting on it (see Join), and the fiber is closed. A panic in fn
// is recovered, and reported as a *PanicError.
func (s *Scheduler) Spawn(name string, fn func(c *Context) error) (*Context, error) {
	if fn == nil {
		return nil, errors.New("fiber: nil function")
	}
	if s.closed.Load() {
		return nil, ErrSchedulerClosed
	}

	x := &fiberCapabilities{
		fn:     fn,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
	}
	c := s.NewContext(x, NewEnvironment(s.opts.stackLimit))
	c.name = name
	c.Pin()
	c.link(s.main)

	go x.run(c)

	s.logger.Debug().
		Uint64(`context`, c.id).
		Str(`name`, name).
		Log(`fiber: spawn`)

	return c, nil
}

func (x *fiberCapabilities) run(c *Context) {
	if _, ok := <-x.resume; !ok {
		// closed before it started
		x.yield <- struct{}{}
		return
	}

	gid := goroutineid.Current()
	c.sched.bind(gid, c)

	defer func() {
		// also reached via runtime.Goexit, if closed while suspended
		c.sched.unbind(gid, c)
		x.yield <- struct{}{}
	}()

	err := x.call(c)
	x.finish(c, err)
}

func (x *fiberCapabilities) call(c *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
			c.sched.logger.Err().
				Err(err).
				Uint64(`context`, c.id).
				Log(`fiber: panic`)
		}
	}()
	return x.fn(c)
}

func (x *fiberCapabilities) finish(c *Context, err error) {
	x.err = err
	x.done = true
	if s := c.Stack(); s != nil {
		x.results = s.Values()
	}
	if _, nerr := c.Notify(All); nerr != nil {
		c.sched.logger.Err().
			Err(nerr).
			Uint64(`context`, c.id).
			Log(`fiber: failed to deliver results`)
	}
	if !c.Closed() {
		_ = c.Close()
	}
}

// Await passes the run token back, and blocks until the fiber is roused.
func (x *fiberCapabilities) Await(c, _ *Context) (int, error) {
	x.yield <- struct{}{}
	if _, ok := <-x.resume; !ok {
		runtime.Goexit()
	}
	return c.height(), nil
}

// Rouse passes the run token to the fiber, and blocks until it awaits or
// finishes.
func (x *fiberCapabilities) Rouse(c, _ *Context) error {
	if x.done || x.killed {
		return fmt.Errorf("fiber: rouse %v: %w", c, ErrClosed)
	}
	x.resume <- struct{}{}
	<-x.yield
	return nil
}

// Close unwinds the fiber's goroutine, if it is suspended or yet to start,
// then rouses any joiners, before releasing its environment.
func (x *fiberCapabilities) Close(c *Context) error {
	if !x.done && !x.killed && c.flags&FlagActive == 0 {
		x.killed = true
		x.err = ErrClosed
		c.unlink()
		close(x.resume)
		<-x.yield
		if _, err := c.Notify(0); err != nil {
			c.sched.logger.Err().
				Err(err).
				Uint64(`context`, c.id).
				Log(`fiber: failed to rouse joiners`)
		}
	}
	return DefaultClose(c)
}

// Yield suspends c on the main context, resuming it on the next iteration of
// the drive loop.
func (c *Context) Yield() (int, error) {
	return c.Await(c.sched.main)
}

// Join waits for the fiber target to finish, returning the values it left on
// its stack, and its error, which is ErrClosed if it was closed before it
// finished. The stack of c is cleared, then receives the values, which Join
// pops. If the fiber has already finished, Join returns immediately.
func (c *Context) Join(target *Context) ([]any, error) {
	x, ok := target.caps.(*fiberCapabilities)
	if !ok {
		return nil, fmt.Errorf("fiber: join %v: %w", target, ErrNotFiber)
	}
	if x.done || x.killed {
		return slices.Clone(x.results), x.err
	}

	if s := c.Stack(); s != nil {
		s.Clear()
	}
	n, err := c.Await(target)
	if err != nil {
		return nil, err
	}
	if x.killed {
		return nil, x.err
	}
	if !x.done {
		return nil, fmt.Errorf("fiber: join %v: %w", target, ErrNotFinished)
	}

	var values []any
	if s := c.Stack(); s != nil && n != 0 {
		values = s.Pop(min(n, s.Len()))
	}
	return values, x.err
}

// Done reports whether c has finished, i.e. whether it is a fiber whose
// function has returned, or any other closed context.
func (c *Context) Done() bool {
	if x, ok := c.caps.(*fiberCapabilities); ok {
		return x.done || x.killed
	}
	return c.Closed()
}

// Err returns the error of a finished fiber.
func (c *Context) Err() error {
	if x, ok := c.caps.(*fiberCapabilities); ok {
		return x.err
	}
	return nil
}
