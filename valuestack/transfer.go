package valuestack

import (
	"fmt"
)

// Transfer moves the top n values of src onto dst, ordered bottom-to-top,
// after clearing dst. The values are removed from src. It returns the number
// of values moved.
//
// Nothing is mutated on failure. Both stacks must have capacity for n more
// values (the check mirrors the host requirement that both sides can grow by
// n), and src must hold at least n values.
func Transfer(src, dst *Stack, n int) (int, error) {
	if err := checkTransfer(src, dst, n); err != nil {
		return 0, err
	}
	if n == 0 {
		dst.Clear()
		return 0, nil
	}
	if src == dst {
		// moving the top of a stack onto itself, after clearing it
		values := src.Pop(n)
		src.Clear()
		src.values = append(src.values, values...)
		return n, nil
	}
	base := len(src.values) - n
	dst.Clear()
	dst.values = append(dst.values, src.values[base:]...)
	src.truncate(base)
	return n, nil
}

// Copy is like Transfer, except src is left unchanged, i.e. dst receives an
// independent copy of the top n values of src. It is used to hand the same
// result set to several consumers, with the producer's values consumed once,
// by the caller, after every consumer has received its copy.
func Copy(src, dst *Stack, n int) (int, error) {
	if err := checkTransfer(src, dst, n); err != nil {
		return 0, err
	}
	if src == dst {
		return n, nil
	}
	dst.Clear()
	if n != 0 {
		dst.values = append(dst.values, src.values[len(src.values)-n:]...)
	}
	return n, nil
}

func checkTransfer(src, dst *Stack, n int) error {
	switch {
	case n < 0:
		return fmt.Errorf("%w: negative count %d", ErrNotEnoughValues, n)
	case len(src.values) < n:
		return fmt.Errorf("%w: transfer %d from %d", ErrNotEnoughValues, n, len(src.values))
	case !src.CheckStack(n), !dst.CheckStack(n):
		return fmt.Errorf("%w: transfer %d", ErrStackOverflow, n)
	}
	return nil
}
