package fiber

import (
	"github.com/yuanfeng0905/luv/eventloop"
)

// mainCapabilities implements the main context, which pumps the reactor
// while it waits.
type mainCapabilities struct{}

// Await is the drive loop. Each iteration rouses the contexts queued on the
// main context, then runs one reactor iteration, stopping once the main
// context is roused, or once nothing is queued and the reactor is idle.
func (mainCapabilities) Await(c, target *Context) (int, error) {
	s := c.sched

	var (
		loop *eventloop.Loop
		err  error
	)
	if s.closed.Load() {
		err = ErrSchedulerClosed
	} else {
		loop, err = s.Loop()
	}

	for err == nil {
		if _, nerr := c.Notify(0); nerr != nil {
			s.logger.Err().
				Err(nerr).
				Uint64(`context`, c.id).
				Log(`fiber: rouse failed`)
		}

		mode := eventloop.RunDefault
		if c.Active() || c.queue.len != 0 {
			mode = eventloop.RunNoWait
		}

		var alive bool
		alive, err = loop.RunOnce(mode)
		if err != nil || c.Active() {
			break
		}
		if !alive && c.queue.len == 0 {
			break
		}
	}

	roused := c.Active()
	if !roused {
		c.flags |= FlagActive
		c.unlink()
	}

	if err != nil {
		s.logger.Err().
			Err(err).
			Uint64(`context`, c.id).
			Log(`fiber: drive loop failed`)
	} else if !roused {
		if n := s.suspendedCount(); n != 0 {
			if _, ok := s.limiter.Allow(c); ok {
				s.logger.Warning().
					Uint64(`context`, c.id).
					Uint64(`target`, target.id).
					Int(`suspended`, n).
					Int(`deadlocked`, len(s.Deadlocked())).
					Log(`fiber: reactor idle with contexts still suspended`)
			}
		}
	}

	return c.height(), err
}

// Rouse wakes the reactor, unless contexts are queued on the main context,
// in which case a wake is already pending.
func (mainCapabilities) Rouse(c, _ *Context) error {
	if c.queue.len == 0 {
		c.sched.wake()
	}
	return nil
}

func (mainCapabilities) Close(c *Context) error { return DefaultClose(c) }
