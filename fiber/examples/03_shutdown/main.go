// Example: Shutdown Handling
//
// This example demonstrates tearing down a scheduler:
// - Structured logging of the scheduler, via stumpy
// - The drive loop returning once the reactor is idle
// - Closing suspended fibers, which unwinds their goroutines
//
// Run with: go run ./examples/03_shutdown/
package main

import (
	"fmt"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	"github.com/yuanfeng0905/luv/fiber"
)

func main() {
	logger := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
		stumpy.L.WithLevel(logiface.LevelInformational),
	).Logger()

	s, err := fiber.New(fiber.WithLogger(logger))
	if err != nil {
		panic(err)
	}

	// nothing ever notifies this context
	never := s.NewContext(nil, fiber.NewEnvironment(0))
	if err := never.Rouse(nil); err != nil {
		panic(err)
	}

	for i := range 3 {
		_, err := s.Spawn(fmt.Sprintf("worker-%d", i), func(c *fiber.Context) error {
			defer fmt.Printf("%v: unwound\n", c)
			fmt.Printf("%v: waiting forever\n", c)
			_, err := c.Await(never)
			return err
		})
		if err != nil {
			panic(err)
		}
	}

	// returns once every worker is suspended, and the reactor is idle
	if _, err := s.Run(nil); err != nil {
		panic(err)
	}
	fmt.Printf("suspended after run: %d\n", len(s.Suspended()))

	if err := s.Close(); err != nil {
		panic(err)
	}
	fmt.Printf("suspended after close: %d\n", len(s.Suspended()))
}
