// Example: Ping Pong
//
// This example demonstrates fibers exchanging values:
// - Spawning fibers
// - Suspending on a shared context, with Await
// - Handing values to waiters, with Notify
// - Joining a fiber from the main context
//
// Run with: go run ./examples/01_pingpong/
package main

import (
	"fmt"

	"github.com/yuanfeng0905/luv/fiber"
)

func main() {
	s, err := fiber.New()
	if err != nil {
		panic(err)
	}
	defer s.Close()

	// A context with no behavior of its own, that fibers wait on. It must be
	// roused once, to start it.
	table := s.NewContext(nil, fiber.NewEnvironment(0))
	if err := table.Rouse(nil); err != nil {
		panic(err)
	}

	pong, err := s.Spawn("pong", func(c *fiber.Context) error {
		var hits int
		for {
			n, err := c.Await(table)
			if err != nil {
				return err
			}
			ball := c.Stack().Pop(n)
			if ball[0] == "done" {
				return c.Stack().Push(hits)
			}
			hits++
			fmt.Printf("pong: got %v\n", ball[0])
		}
	})
	if err != nil {
		panic(err)
	}

	_, err = s.Spawn("ping", func(c *fiber.Context) error {
		for _, ball := range []any{"ping 1", "ping 2", "ping 3", "done"} {
			if err := table.Stack().Push(ball); err != nil {
				return err
			}
			// pong runs until it waits again, before Notify returns
			if _, err := table.Notify(1); err != nil {
				return err
			}
			if _, err := c.Yield(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		panic(err)
	}

	values, err := s.Main().Join(pong)
	if err != nil {
		panic(err)
	}
	fmt.Printf("pong returned %v hits\n", values[0])
}
