package fiber

import (
	"github.com/yuanfeng0905/luv/valuestack"
)

// Environment is the host side of a context: the stack of values it
// exchanges with other contexts, and the goroutine it runs on, if any.
type Environment struct {
	stack *valuestack.Stack
	gid   uint64
}

// NewEnvironment returns an environment with an empty stack, holding at most
// limit values (see valuestack.New), that is not yet bound to a goroutine.
func NewEnvironment(limit int) *Environment {
	return &Environment{stack: valuestack.New(limit)}
}

// Stack returns the value stack, or nil if x is nil.
func (x *Environment) Stack() *valuestack.Stack {
	if x == nil {
		return nil
	}
	return x.stack
}

// Goroutine returns the id of the bound goroutine, or 0.
func (x *Environment) Goroutine() uint64 {
	if x == nil {
		return 0
	}
	return x.gid
}
