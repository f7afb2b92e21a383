package fiber

// Capabilities implements the variant-specific half of the context
// operations. The scheduler updates flags and queues, then delegates to the
// context's Capabilities.
//
// Await is called once c has been queued on target, and should return only
// once c has been roused. Rouse is called once c is active again, and should
// resume it. Close should release c's environment, see DefaultClose.
type Capabilities interface {
	Await(c, target *Context) (int, error)
	Rouse(c, from *Context) error
	Close(c *Context) error
}

// CapabilityFuncs adapts functions to Capabilities. Each nil field behaves
// like the capability of a context created by NewContext with nil
// Capabilities.
type CapabilityFuncs struct {
	AwaitFunc func(c, target *Context) (int, error)
	RouseFunc func(c, from *Context) error
	CloseFunc func(c *Context) error
}

var _ Capabilities = CapabilityFuncs{}

func (x CapabilityFuncs) Await(c, target *Context) (int, error) {
	if x.AwaitFunc == nil {
		return c.height(), nil
	}
	return x.AwaitFunc(c, target)
}

func (x CapabilityFuncs) Rouse(c, from *Context) error {
	if x.RouseFunc == nil {
		return nil
	}
	return x.RouseFunc(c, from)
}

func (x CapabilityFuncs) Close(c *Context) error {
	if x.CloseFunc == nil {
		return DefaultClose(c)
	}
	return x.CloseFunc(c)
}

// DefaultClose clears the stack of c, and releases its pin, or, if it was
// not pinned, its goroutine association. The environment is then detached.
// It is a no-op if c has no environment.
func DefaultClose(c *Context) error {
	if c.env == nil {
		return nil
	}
	if s := c.env.stack; s != nil {
		s.Clear()
	}
	if c.pinned {
		c.pinned = false
		c.sched.mu.Lock()
		delete(c.sched.pinned, c)
		c.sched.mu.Unlock()
	} else {
		c.sched.unbind(c.env.gid, c)
	}
	c.env = nil
	return nil
}
