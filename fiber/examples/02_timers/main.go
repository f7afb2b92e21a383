// Example: Timer Variant
//
// This example demonstrates a context variant built on the reactor:
// - A context that notifies its waiters when a reactor timer fires
// - Fibers sleeping concurrently, on separate timers
// - Cancelling a timer, leaving its waiter to be roused some other way
//
// Run with: go run ./examples/02_timers/
package main

import (
	"fmt"
	"time"

	"github.com/yuanfeng0905/luv/eventloop"
	"github.com/yuanfeng0905/luv/fiber"
)

// timer is a context that wakes everything waiting on it, once d elapses.
type timer struct {
	*fiber.Context
	loop *eventloop.Loop
	id   eventloop.TimerID
}

func newTimer(s *fiber.Scheduler, d time.Duration) (*timer, error) {
	loop, err := s.Loop()
	if err != nil {
		return nil, err
	}
	t := &timer{loop: loop}
	t.Context = s.NewContext(fiber.CapabilityFuncs{
		CloseFunc: func(c *fiber.Context) error {
			_ = t.loop.CancelTimer(t.id)
			return fiber.DefaultClose(c)
		},
	}, fiber.NewEnvironment(0))
	if err := t.Rouse(nil); err != nil {
		return nil, err
	}
	t.id, err = loop.ScheduleTimer(d, func() {
		if err := t.Stack().Push(time.Now()); err != nil {
			panic(err)
		}
		if _, err := t.Notify(fiber.All); err != nil {
			panic(err)
		}
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func sleep(c *fiber.Context, d time.Duration) (time.Time, error) {
	t, err := newTimer(c.Scheduler(), d)
	if err != nil {
		return time.Time{}, err
	}
	defer t.Close()
	n, err := c.Await(t.Context)
	if err != nil {
		return time.Time{}, err
	}
	return c.Stack().Pop(n)[0].(time.Time), nil
}

func main() {
	s, err := fiber.New()
	if err != nil {
		panic(err)
	}
	defer s.Close()

	start := time.Now()

	for _, d := range []time.Duration{150 * time.Millisecond, 50 * time.Millisecond, 100 * time.Millisecond} {
		_, err := s.Spawn(d.String(), func(c *fiber.Context) error {
			woke, err := sleep(c, d)
			if err != nil {
				return err
			}
			fmt.Printf("%v: slept %v\n", c, woke.Sub(start).Round(10*time.Millisecond))
			return nil
		})
		if err != nil {
			panic(err)
		}
	}

	// Order: 50ms, 100ms, 150ms
	if _, err := s.Run(nil); err != nil {
		panic(err)
	}

	// A cancelled timer never fires, so the main context gives up on it once
	// the reactor is idle.
	t, err := newTimer(s, time.Hour)
	if err != nil {
		panic(err)
	}
	if err := t.loop.CancelTimer(t.id); err != nil {
		panic(err)
	}
	if _, err := s.Run(t.Context); err != nil {
		panic(err)
	}
	fmt.Printf("gave up on the cancelled timer, waiters left: %d\n", t.Waiting())
}
