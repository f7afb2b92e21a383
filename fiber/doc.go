// Package fiber implements cooperative scheduling of execution contexts over
// a single [eventloop.Loop].
//
// A [Context] runs until it suspends itself, via [Context.Await], queuing
// itself on a target context. It resumes once some other context rouses it,
// usually by calling [Context.Notify] on the target, which rouses every
// waiter in the order they started waiting, optionally handing each a copy of
// values from the notifier's stack.
//
// Variants of context differ only in their [Capabilities]. The main context,
// created with the [Scheduler], drives the reactor while it waits: each
// iteration of its drive loop rouses the contexts queued on it, then runs one
// reactor iteration, until the main context is roused, or nothing is left to
// do. Fibers, created via [Scheduler.Spawn], each run on a goroutine of their
// own, and only proceed while holding the scheduler's run token, which is
// passed on rouse, and handed back on await.
//
// # Example
//
//	s, err := fiber.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	worker, _ := s.Spawn("worker", func(c *fiber.Context) error {
//	    if _, err := c.Yield(); err != nil {
//	        return err
//	    }
//	    return c.Stack().Push("done")
//	})
//
//	values, err := s.Main().Join(worker)
//	fmt.Println(values, err) // [done] <nil>
//
// # Protocol violations
//
// Await on a suspended context, rouse on an active one, and closing a context
// twice are programming errors, and panic with a [*ProtocolError].
package fiber
