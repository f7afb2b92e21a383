// Package examples contains runnable example programs demonstrating
// the fiber package functionality.
//
// # Examples
//
// The examples directory contains the following subdirectories:
//
//   - 01_pingpong: Fibers exchanging values through a shared context
//   - 02_timers: A timer-backed context variant, built on the reactor
//   - 03_shutdown: Tearing down a scheduler with fibers still suspended
//
// # Running Examples
//
// Each example can be run from the examples directory:
//
//	cd fiber/examples
//	go run ./01_pingpong/
//	go run ./02_timers/
//	go run ./03_shutdown/
package examples
