package fiber

import (
	cycle "github.com/joeycumines/go-detect-cycle/floyds"
)

// Deadlocked returns the suspended contexts that can never be roused by
// notify alone: those whose chain of targets (see Context.Target) loops back
// on itself, rather than ending at an active context. Ordered by id.
func (s *Scheduler) Deadlocked() []*Context {
	suspended := s.Suspended()
	var deadlocked []*Context
	for _, c := range suspended {
		if awaitCycle(c, len(suspended)) {
			deadlocked = append(deadlocked, c)
		}
	}
	return deadlocked
}

// awaitCycle follows the targets of c, at most limit steps, each suspended
// context having exactly one target.
func awaitCycle(c *Context, limit int) bool {
	f := cycle.NewBranchingDetector(c, nil)
	steps := 0
	for t := c.cond.target; t != nil; t = t.cond.target {
		next := f.Hare(t)
		if !f.Ok() || !next.Ok() {
			return true
		}
		f = next
		if steps++; steps > limit {
			return true
		}
	}
	return false
}
