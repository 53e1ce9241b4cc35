// Package eventloop implements the render/event pump of a Wayland display
// embedder: a single goroutine, locked to its OS thread, that multiplexes
// the display connection, vsync notifications, key-repeat expiries and
// delayed engine tasks over one blocking epoll wait.
//
// # Architecture
//
// A [Pump] owns:
//   - a [vsync.Bridge], through which the engine deposits one presentation
//     token at a time ([Pump.RequestVsync])
//   - a [delayq.Queue] of engine tasks ([Pump.PostTask]), with a timerfd
//     armed to the earliest deadline and an eventfd signalled on every post
//   - optionally, a [keyrepeat.Timer] and any number of extra [Source]s
//
// The display itself is abstracted by [Display], which mirrors the
// prepare-read / read-events / dispatch-pending protocol of libwayland's
// client API, so that events are never read from the socket by more than
// one party.
//
// # Iteration
//
// Each pass of the loop:
//  1. prepares to read, dispatching pending callbacks until that succeeds
//  2. flushes outgoing requests
//  3. runs expired tasks and re-arms the deadline timer
//  4. blocks, without timeout, until any descriptor is ready
//  5. handles key repeats, task wake-ups and extra sources
//  6. answers a pending vsync token, then returns to 3 (the read intent is
//     kept, so a stream of vsyncs is never delayed by the display)
//  7. reads display events if readable, otherwise cancels the read intent
//  8. dispatches pending protocol callbacks
//
// # Thread Safety
//
// [Pump.RequestVsync], [Pump.PostTask], [Pump.Fail], [Pump.Shutdown] and
// [Pump.Close] are safe to call from any goroutine. Every collaborator
// ([Display], [Engine] callbacks, [Presenter], [RepeatHandler], [Source]) is
// invoked on the pump goroutine only.
//
// # Errors
//
// Unrecoverable failures are reported as [*FatalError], classifying the
// failure by [FatalKind]. Collaborators report such failures with
// [Pump.Fail], which stops the loop; the first reported error is returned
// by [Pump.Run].
package eventloop
