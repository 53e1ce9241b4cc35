package eventloop

// Display is the display-server connection, following libwayland's
// threaded read protocol. All methods are called on the pump goroutine.
type Display interface {
	// Fd returns the connection descriptor.
	Fd() int

	// PrepareRead announces the intention to read events. It returns false
	// if events are already queued, in which case they must be dispatched
	// before preparing again.
	PrepareRead() bool

	// CancelRead withdraws a prepared read intent.
	CancelRead()

	// ReadEvents reads from the connection, consuming the read intent.
	ReadEvents() error

	// DispatchPending invokes the listeners of queued events.
	DispatchPending() error

	// Flush writes buffered requests.
	Flush() error

	// Valid reports whether the session can continue. The pump exits
	// cleanly once it returns false.
	Valid() bool
}

// HostTask identifies an engine task. Runner and ID are opaque to the pump.
type HostTask struct {
	Runner uintptr
	ID     uint64
}

// Engine is the host engine, as seen from the pump goroutine.
type Engine interface {
	// OnVsync answers a vsync request, with the start and target end of the
	// frame, in CLOCK_MONOTONIC ns. An error is fatal.
	OnVsync(token uintptr, start, end uint64) error

	// RunTask runs an expired task. Errors are logged.
	RunTask(task HostTask) error
}

// Presenter is asked, for each vsync answered, whether it requested
// presentation feedback for the coming frame, in which case pending
// callbacks are dispatched before the window is computed.
type Presenter interface {
	RequestFeedback() bool
}

// RepeatHandler re-sends the last key, as a repeat.
type RepeatHandler interface {
	RepeatKey() error
}

// Source is an additional readable descriptor serviced by the pump. Handle
// is called each time Fd is readable. An error is fatal.
type Source interface {
	Fd() int
	Handle() error
}

// RepeatTimer is the key-repeat timer, as used by the pump.
type RepeatTimer interface {
	Fd() int
	// Expired drains the timer, returning the number of expirations.
	Expired() (uint64, error)
}
