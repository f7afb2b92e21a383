// Package eventloop provides the reactor that a cooperative scheduler drives:
// a single-goroutine event loop with timers, I/O readiness notification and
// an asynchronous wake-up, run one iteration at a time.
//
// # Architecture
//
// A [Loop] is driven by its owner, via [Loop.RunOnce], rather than running on
// a goroutine of its own. Each iteration updates the cached tick time, runs
// expired timers, drains tasks submitted via [Loop.Submit], then polls for
// I/O, blocking until the next timer deadline, I/O readiness, or a wake-up.
// RunOnce reports whether the loop is still alive, i.e. whether there is any
// referenced work pending: active timers, registered file descriptors, queued
// tasks, or explicit references taken via [Loop.Ref].
//
// The wake-up mechanism ([Loop.Wake]) is unreferenced, so that a loop with no
// other pending work reports itself as idle, even while a wake is pending.
//
// # Platform Support
//
// I/O polling is implemented using platform-native mechanisms:
//   - Linux: epoll, with an eventfd for wake-ups
//   - macOS: kqueue, with a self-pipe for wake-ups
//
// # Thread Safety
//
//   - [Loop.Submit], [Loop.Wake], [Loop.Close], [Loop.Ref] and [Loop.Unref]
//     are safe to call from any goroutine
//   - Timer and FD registration methods are safe to call from any goroutine
//   - [Loop.RunOnce] must not be called concurrently, nor from a callback
//
// # Usage
//
//	loop, err := eventloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	loop.ScheduleTimer(100*time.Millisecond, func() {
//	    fmt.Println("fired")
//	})
//
//	for {
//	    alive, err := loop.RunOnce(eventloop.RunDefault)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    if !alive {
//	        break
//	    }
//	}
package eventloop
