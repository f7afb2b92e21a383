// Package valuestack implements the per-context execution stack of values,
// and the transfer of a fixed count of values from one stack to another.
//
// A Stack is bounded: every push and transfer first checks that the stack has
// capacity for the incoming values, and fails with [ErrStackOverflow] without
// mutating anything if it does not. Values are ordered bottom-to-top, and all
// multi-value operations preserve that order.
//
// Stacks are not safe for concurrent use. They are owned by the scheduler
// context that runs on them, and are only mutated by whichever goroutine holds
// the scheduler's run token.
package valuestack
