package valuestack

import (
	"errors"
	"fmt"
)

// DefaultLimit is the maximum number of values a Stack may hold, if no (or a
// non-positive) limit is provided to [New].
const DefaultLimit = 8000

var (
	// ErrStackOverflow indicates a stack lacks capacity for the requested
	// number of additional values.
	ErrStackOverflow = errors.New("valuestack: stack overflow")

	// ErrNotEnoughValues indicates a stack holds fewer values than requested.
	ErrNotEnoughValues = errors.New("valuestack: not enough values")
)

// Stack is a bounded, ordered sequence of values. The zero value is an empty
// stack with [DefaultLimit].
type Stack struct {
	values []any
	limit  int
}

// New returns an empty stack holding at most limit values.
func New(limit int) *Stack {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack{limit: limit}
}

// Limit returns the maximum number of values the stack may hold.
func (x *Stack) Limit() int {
	if x.limit <= 0 {
		return DefaultLimit
	}
	return x.limit
}

// Len returns the number of values present.
func (x *Stack) Len() int { return len(x.values) }

// CheckStack reports whether n more values can be pushed.
func (x *Stack) CheckStack(n int) bool {
	return n >= 0 && len(x.values)+n <= x.Limit()
}

// Push appends values, in order, to the top of the stack. Nothing is pushed
// if the stack lacks capacity for all of them.
func (x *Stack) Push(values ...any) error {
	if !x.CheckStack(len(values)) {
		return fmt.Errorf("%w: push %d onto %d (limit %d)", ErrStackOverflow, len(values), len(x.values), x.Limit())
	}
	x.values = append(x.values, values...)
	return nil
}

// Pop removes the top n values, returning them ordered bottom-to-top. It
// panics if n is negative or greater than Len.
func (x *Stack) Pop(n int) []any {
	if n < 0 || n > len(x.values) {
		panic(fmt.Errorf("%w: pop %d from %d", ErrNotEnoughValues, n, len(x.values)))
	}
	if n == 0 {
		return nil
	}
	base := len(x.values) - n
	popped := make([]any, n)
	copy(popped, x.values[base:])
	x.truncate(base)
	return popped
}

// Top returns a copy of the top n values, ordered bottom-to-top, or nil if
// fewer than n values are present.
func (x *Stack) Top(n int) []any {
	if n <= 0 || n > len(x.values) {
		return nil
	}
	top := make([]any, n)
	copy(top, x.values[len(x.values)-n:])
	return top
}

// Get returns the value at index i, counting from 0 at the bottom, or from -1
// at the top, if i is negative. It returns nil if i is out of range.
func (x *Stack) Get(i int) any {
	if i < 0 {
		i += len(x.values)
	}
	if i < 0 || i >= len(x.values) {
		return nil
	}
	return x.values[i]
}

// Values returns a copy of every value, ordered bottom-to-top.
func (x *Stack) Values() []any { return x.Top(len(x.values)) }

// SetTop sets the number of values present to n, truncating, or padding with
// nil values. Negative n counts from the top, i.e. SetTop(-2) pops one value.
func (x *Stack) SetTop(n int) error {
	if n < 0 {
		n += len(x.values) + 1
		if n < 0 {
			return fmt.Errorf("%w: settop %d from %d", ErrNotEnoughValues, n, len(x.values))
		}
	}
	if n <= len(x.values) {
		x.truncate(n)
		return nil
	}
	if n > x.Limit() {
		return fmt.Errorf("%w: settop %d (limit %d)", ErrStackOverflow, n, x.Limit())
	}
	x.values = append(x.values, make([]any, n-len(x.values))...)
	return nil
}

// Clear removes every value.
func (x *Stack) Clear() { x.truncate(0) }

// truncate drops values above n, clearing their slots for the GC.
func (x *Stack) truncate(n int) {
	clear(x.values[n:])
	x.values = x.values[:n]
}
