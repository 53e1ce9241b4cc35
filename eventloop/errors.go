package eventloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run() is called on a pump that is already running.
	ErrLoopAlreadyRunning = errors.New("eventloop: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a terminated pump.
	ErrLoopTerminated = errors.New("eventloop: loop has been terminated")

	// ErrReentrantRun is returned when Run() is called from within the pump itself.
	ErrReentrantRun = errors.New("eventloop: cannot call Run() from within the loop")

	// ErrDisplayLost is wrapped when the display connection reports an error
	// or hangup without being readable.
	ErrDisplayLost = errors.New("eventloop: display connection lost")

	// ErrVsyncFailed is wrapped when the engine rejects a vsync answer.
	ErrVsyncFailed = errors.New("eventloop: engine vsync failed")
)

// FatalKind classifies unrecoverable failures.
type FatalKind int

const (
	// KindSetup covers failures constructing the session or pump.
	KindSetup FatalKind = iota + 1
	// KindProtocol covers violations of the engine or display protocols,
	// e.g. a second vsync token, or a failed vsync answer.
	KindProtocol
	// KindGPU covers buffer swap and context failures.
	KindGPU
	// KindIO covers descriptor failures that could not be retried.
	KindIO
)

func (k FatalKind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindProtocol:
		return "protocol"
	case KindGPU:
		return "gpu"
	case KindIO:
		return "io"
	default:
		return fmt.Sprintf("FatalKind(%d)", int(k))
	}
}

// FatalError is an unrecoverable failure, which stops the pump.
type FatalError struct {
	Err  error
	Kind FatalKind
}

// Fatal wraps err as a [*FatalError] of the given kind. A nil err yields
// nil, and an err that is already a FatalError is returned unchanged.
func Fatal(kind FatalKind, err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	if e.Err == nil {
		return "eventloop: fatal " + e.Kind.String() + " error"
	}
	return "eventloop: fatal " + e.Kind.String() + " error: " + e.Err.Error()
}

// Unwrap returns the underlying cause for use with [errors.Is] and [errors.As].
func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatalKind reports whether err is a [*FatalError] of the given kind.
func IsFatalKind(err error, kind FatalKind) bool {
	var fe *FatalError
	return errors.As(err, &fe) && fe.Kind == kind
}

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e PanicError) Error() string {
	return fmt.Sprintf("eventloop: task panicked: %v", e.Value)
}

// Unwrap returns the underlying error if the panic value is an error type,
// otherwise nil.
func (e PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
