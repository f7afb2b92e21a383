package fiber

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/yuanfeng0905/luv/goroutineid"
	"github.com/yuanfeng0905/luv/valuestack"
)

// All may be passed to Notify to hand every value on the notifier's stack to
// each waiter.
const All = -1

// Flags is the state bitset of a Context.
type Flags uint8

const (
	// FlagActive is set while a context is not suspended.
	FlagActive Flags = 1 << iota
	// FlagClosed is set, permanently, by Close.
	FlagClosed
)

func (f Flags) String() string {
	switch f {
	case 0:
		return `none`
	case FlagActive:
		return `active`
	case FlagClosed:
		return `closed`
	case FlagActive | FlagClosed:
		return `active|closed`
	default:
		return `Flags(` + strconv.Itoa(int(f)) + `)`
	}
}

var errNilTarget = errors.New("fiber: nil target")

// Context is a unit of cooperative work, which runs until it suspends itself
// via Await, and resumes when some other context calls Rouse on it (usually
// via Notify).
//
// A new context is neither active nor queued. Rousing it starts it.
//
// Contexts are not safe for concurrent use. Every operation must be performed
// by the goroutine currently holding the scheduler's run token, i.e. the
// goroutine driving the main context, or a running fiber.
type Context struct {
	sched  *Scheduler
	caps   Capabilities
	env    *Environment
	queue  waitQueue
	cond   waitNode
	id     uint64
	name   string
	flags  Flags
	pinned bool
}

// Await suspends c until it is roused, queuing it on target. The result is
// provided by the context's Capabilities, and is conventionally the number
// of values on its stack, once resumed.
//
// Await panics with a *ProtocolError if c is not active.
func (c *Context) Await(target *Context) (int, error) {
	if target == nil {
		panic(&ProtocolError{Op: `await`, Context: c, Err: errNilTarget})
	}
	if c.flags&FlagActive == 0 {
		panic(&ProtocolError{Op: `await`, Context: c, Err: ErrNotActive})
	}
	if gid := c.env.Goroutine(); gid != 0 && gid != goroutineid.Current() {
		panic(&ProtocolError{Op: `await`, Context: c, Err: ErrWrongGoroutine})
	}

	c.flags &^= FlagActive
	c.link(target)

	c.sched.logger.Debug().
		Uint64(`context`, c.id).
		Uint64(`target`, target.id).
		Log(`fiber: await`)

	return c.caps.Await(c, target)
}

// Rouse resumes c, removing it from the queue it is waiting in. The from
// context is passed on to the Capabilities, and is typically the notifier.
//
// Rouse panics with a *ProtocolError if c is active.
func (c *Context) Rouse(from *Context) error {
	if c.flags&FlagActive != 0 {
		panic(&ProtocolError{Op: `rouse`, Context: c, Err: ErrAlreadyActive})
	}

	c.flags |= FlagActive
	c.unlink()

	c.sched.logger.Debug().
		Uint64(`context`, c.id).
		Uint64(`from`, from.ID()).
		Log(`fiber: rouse`)

	return c.caps.Rouse(c, from)
}

// Close retires c. No further operations on c are valid.
//
// Close panics with a *ProtocolError if c is already closed.
func (c *Context) Close() error {
	if c.flags&FlagClosed != 0 {
		panic(&ProtocolError{Op: `close`, Context: c, Err: ErrClosed})
	}
	c.flags |= FlagClosed
	return c.caps.Close(c)
}

// Notify rouses every context that was waiting on c when it was called, in
// the order they started waiting, returning the number roused. Contexts that
// start waiting on c during the call are left for the next Notify.
//
// If count is non-zero, the top count values of c's stack are copied to the
// (cleared) stack of each waiter, before it is roused, and are popped from
// c's stack once every waiter has been roused. All resolves, once, to the
// number of values present.
//
// If a waiter's stack cannot receive the values, Notify stops, leaving that
// waiter and those after it queued, and c's stack unchanged.
func (c *Context) Notify(count int) (int, error) {
	src := c.Stack()
	height := c.height()
	if count == All {
		count = height
	}
	if count < 0 || count > height {
		return 0, fmt.Errorf("fiber: notify %v: count %d of %d: %w", c, count, height, valuestack.ErrNotEnoughValues)
	}

	var (
		woken int
		errs  []error
		limit = c.queue.seq
	)
	for _, w := range c.queue.snapshot() {
		if w.cond.target != c || w.cond.seq > limit {
			// roused during this notify, by another context, and possibly
			// queued again
			continue
		}
		if count != 0 {
			dst := w.Stack()
			if dst == nil {
				return woken, fmt.Errorf("fiber: notify %v: waiter %v: %w", c, w, ErrClosed)
			}
			if _, err := valuestack.Copy(src, dst, count); err != nil {
				return woken, fmt.Errorf("fiber: notify %v: waiter %v: %w", c, w, err)
			}
		}
		if err := w.Rouse(c); err != nil {
			errs = append(errs, err)
		}
		woken++
	}

	if count != 0 && src.Len() >= count {
		src.Pop(count)
	}

	c.sched.logger.Debug().
		Uint64(`context`, c.id).
		Int(`count`, count).
		Int(`woken`, woken).
		Log(`fiber: notify`)

	return woken, errors.Join(errs...)
}

// Pin anchors c in its scheduler, until it is closed.
func (c *Context) Pin() {
	if c.flags&FlagClosed != 0 {
		panic(&ProtocolError{Op: `pin`, Context: c, Err: ErrClosed})
	}
	if c.pinned {
		return
	}
	c.pinned = true
	c.sched.mu.Lock()
	c.sched.pinned[c] = struct{}{}
	c.sched.mu.Unlock()
}

// Pinned reports whether c is anchored in its scheduler.
func (c *Context) Pinned() bool { return c.pinned }

func (c *Context) Flags() Flags { return c.flags }

func (c *Context) Active() bool { return c.flags&FlagActive != 0 }

func (c *Context) Closed() bool { return c.flags&FlagClosed != 0 }

// Waiting returns the number of contexts waiting on c.
func (c *Context) Waiting() int { return c.queue.len }

// Waiters returns the contexts waiting on c, in wake order.
func (c *Context) Waiters() []*Context { return c.queue.snapshot() }

// Target returns the context c is waiting on, or nil.
func (c *Context) Target() *Context { return c.cond.target }

// Env returns the environment of c, which is nil once closed.
func (c *Context) Env() *Environment { return c.env }

// Stack returns the value stack of c, or nil if c has no environment.
func (c *Context) Stack() *valuestack.Stack { return c.env.Stack() }

func (c *Context) Scheduler() *Scheduler { return c.sched }

// ID returns the scheduler-unique id of c, or 0 if c is nil.
func (c *Context) ID() uint64 {
	if c == nil {
		return 0
	}
	return c.id
}

func (c *Context) Name() string { return c.name }

func (c *Context) String() string {
	if c == nil {
		return `<nil>`
	}
	name := c.name
	if name == `` {
		name = `context`
	}
	return name + `#` + strconv.FormatUint(c.id, 10)
}

func (c *Context) height() int {
	if s := c.Stack(); s != nil {
		return s.Len()
	}
	return 0
}

// link queues c on target, recording it as suspended.
func (c *Context) link(target *Context) {
	target.queue.pushBack(target, c)
	c.sched.mu.Lock()
	c.sched.suspended[c] = struct{}{}
	c.sched.mu.Unlock()
	if target == c.sched.main {
		// work queued on main implies a pending wake, see mainCapabilities
		c.sched.wake()
	}
}

// unlink removes c from the queue it is waiting in, if any.
func (c *Context) unlink() {
	if t := c.cond.target; t != nil {
		t.queue.remove(c)
	}
	c.sched.mu.Lock()
	delete(c.sched.suspended, c)
	c.sched.mu.Unlock()
}
