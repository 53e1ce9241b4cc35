//go:build linux

package sim

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Display is an in-process display connection. Events are closures, queued
// by Push from any goroutine, and run by DispatchPending on the pump
// goroutine. A pipe stands in for the connection socket.
type Display struct {
	incoming []func()
	queued   []func()
	mu       sync.Mutex
	r, w     int
	closed   atomic.Bool
	reads    atomic.Uint64
}

// NewDisplay creates a display, which must be closed after the pump stops.
func NewDisplay() (*Display, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	return &Display{r: fds[0], w: fds[1]}, nil
}

// Push queues an event, waking the pump.
func (d *Display) Push(event func()) {
	if d.closed.Load() {
		return
	}
	d.mu.Lock()
	d.incoming = append(d.incoming, event)
	d.mu.Unlock()
	// a full pipe is already readable
	_, _ = unix.Write(d.w, []byte{1})
}

func (d *Display) Fd() int { return d.r }

func (d *Display) PrepareRead() bool { return len(d.queued) == 0 }

func (d *Display) CancelRead() {}

func (d *Display) ReadEvents() error {
	d.reads.Add(1)
	var buf [256]byte
	for {
		n, err := unix.Read(d.r, buf[:])
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if n <= 0 || err != nil {
			break
		}
	}
	d.mu.Lock()
	d.queued = append(d.queued, d.incoming...)
	d.incoming = d.incoming[:0]
	d.mu.Unlock()
	return nil
}

func (d *Display) DispatchPending() error {
	queued := d.queued
	d.queued = nil
	for _, event := range queued {
		event()
	}
	return nil
}

func (d *Display) Flush() error { return nil }

func (d *Display) Valid() bool { return !d.closed.Load() }

// Reads returns the number of reads performed by the pump.
func (d *Display) Reads() uint64 { return d.reads.Load() }

// Close closes the pipe.
func (d *Display) Close() error {
	d.closed.Store(true)
	return errors.Join(unix.Close(d.r), unix.Close(d.w))
}
