package fiber

// waitNode links a context into the wait queue of its target. The links are
// plain pointers: a context stays reachable while linked, so there is nothing
// to dangle.
type waitNode struct {
	prev, next *Context
	target     *Context
	seq        uint64
}

// waitQueue is an intrusive FIFO of the contexts suspended on its owner.
type waitQueue struct {
	head, tail *Context
	len        int
	// seq numbers each push, so a drain can tell waiters that arrived after
	// it started
	seq uint64
}

func (q *waitQueue) pushBack(owner, c *Context) {
	q.seq++
	c.cond = waitNode{prev: q.tail, target: owner, seq: q.seq}
	if q.tail == nil {
		q.head = c
	} else {
		q.tail.cond.next = c
	}
	q.tail = c
	q.len++
}

func (q *waitQueue) remove(c *Context) {
	if c.cond.prev == nil {
		q.head = c.cond.next
	} else {
		c.cond.prev.cond.next = c.cond.next
	}
	if c.cond.next == nil {
		q.tail = c.cond.prev
	} else {
		c.cond.next.cond.prev = c.cond.prev
	}
	c.cond = waitNode{}
	q.len--
}

// snapshot returns the queued contexts, in wake order.
func (q *waitQueue) snapshot() []*Context {
	if q.len == 0 {
		return nil
	}
	s := make([]*Context, 0, q.len)
	for c := q.head; c != nil; c = c.cond.next {
		s = append(s, c)
	}
	return s
}
