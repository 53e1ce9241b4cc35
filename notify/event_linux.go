//go:build linux

package notify

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Event is an eventfd based wake-up. Signals coalesce into the eventfd
// counter, which Drain resets.
type Event struct {
	fd      int
	pending atomic.Uint32
	closed  atomic.Bool
	buf     [8]byte
}

// NewEvent creates a non-blocking, close-on-exec eventfd.
func NewEvent() (*Event, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("notify: eventfd: %w", err)
	}
	return &Event{fd: fd}, nil
}

// Fd returns the eventfd, for polling.
func (e *Event) Fd() int { return e.fd }

// Signal increments the counter, making the descriptor readable. Signals
// issued while one is already pending (not yet drained) are skipped, the
// pending one suffices to wake the reader.
func (e *Event) Signal() error {
	if e.closed.Load() {
		return ErrClosed
	}
	if !e.pending.CompareAndSwap(0, 1) {
		return nil
	}
	var b [8]byte
	binary.NativeEndian.PutUint64(b[:], 1)
	if _, err := writeFD(e.fd, b[:]); err != nil {
		e.pending.Store(0)
		return fmt.Errorf("notify: eventfd write: %w", err)
	}
	return nil
}

// Drain resets the counter, returning its value (0 if nothing was pending).
// Must only be called by the reader, before it inspects the state the
// signal guards: a Signal racing with Drain may be skipped, but it happened
// after whatever it published.
func (e *Event) Drain() (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	n, err := readFD(e.fd, e.buf[:])
	e.pending.Store(0)
	if err == unix.EAGAIN {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("notify: eventfd read: %w", err)
	}
	if n != len(e.buf) {
		return 0, fmt.Errorf("notify: eventfd read %d bytes: %w", n, ErrShortRead)
	}
	return binary.NativeEndian.Uint64(e.buf[:]), nil
}

// Close closes the eventfd.
func (e *Event) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	return closeFD(&e.fd)
}
