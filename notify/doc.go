// Package notify wraps the Linux descriptors used to wake a poll-driven loop.
//
// Three primitives are provided, each exposing a pollable read descriptor via
// Fd:
//   - [Channel]: a datagram socketpair carrying one counter byte per
//     notification (one writer, one reader)
//   - [Event]: an eventfd, used for coalescing wake-ups from any goroutine
//   - [Timer]: a CLOCK_MONOTONIC timerfd, relative or absolute
//
// All descriptors are created non-blocking and close-on-exec. Interrupted
// reads and writes are retried, and a writer that sees EAGAIN retries rather
// than drop the wake-up.
package notify
