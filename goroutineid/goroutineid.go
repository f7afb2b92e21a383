// Package goroutineid exposes the id of the calling goroutine.
//
// The id is parsed from the header line written by [runtime.Stack], which is
// "goroutine <id> [<status>]:". It is used as the identity of the unit of
// host-level execution, e.g. to find the scheduler context bound to the
// calling goroutine.
package goroutineid

import (
	"runtime"
)

const prefix = "goroutine "

// Current returns the id of the calling goroutine, or 0 if it could not be
// determined.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(b []byte) (id uint64) {
	if len(b) <= len(prefix) || string(b[:len(prefix)]) != prefix {
		return 0
	}
	for _, c := range b[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return
}
