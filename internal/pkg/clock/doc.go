// Package clock provides a tiny time abstraction.
//
// Production code should depend on the Clocker and Sleeper interfaces instead
// of calling time.Now() or time.Sleep() directly, so tests can swap in a fake
// that returns deterministic times and records requested delays.
package clock
