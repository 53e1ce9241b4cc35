//go:build linux

package notify

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// Channel is a one-writer, one-reader notification channel, backed by a
// datagram socketpair. Each Send writes exactly one byte (a wrapping counter,
// useful only for debugging), and each Receive consumes exactly one.
//
// Unlike [Event], notifications are not coalesced: N sends require N
// receives, which lets the reader match each notification to exactly one
// unit of work.
type Channel struct {
	reader int
	writer int
	seq    atomic.Uint32
	closed atomic.Bool
}

// NewChannel creates a socketpair backed Channel.
func NewChannel() (*Channel, error) {
	sv, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("notify: socketpair: %w", err)
	}
	return &Channel{writer: sv[0], reader: sv[1]}, nil
}

// Fd returns the read end, for polling.
func (c *Channel) Fd() int { return c.reader }

// Send writes one notification byte. Safe to call from any goroutine, but
// the channel is intended for a single writer.
func (c *Channel) Send() error {
	if c.closed.Load() {
		return ErrClosed
	}
	b := [1]byte{byte(c.seq.Add(1))}
	n, err := writeFD(c.writer, b[:])
	if err != nil {
		return fmt.Errorf("notify: channel write: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("notify: channel write: wrote %d bytes", n)
	}
	return nil
}

// Receive consumes one notification byte. It must only be called once the
// read end has been reported readable, and returns ErrShortRead (wrapped)
// if no byte was available.
func (c *Channel) Receive() error {
	if c.closed.Load() {
		return ErrClosed
	}
	var b [1]byte
	n, err := readFD(c.reader, b[:])
	if err != nil {
		return fmt.Errorf("notify: channel read: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("notify: channel read %d bytes: %w", n, ErrShortRead)
	}
	return nil
}

// Close closes both ends.
func (c *Channel) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err1 := closeFD(&c.writer)
	err2 := closeFD(&c.reader)
	if err1 != nil {
		return err1
	}
	return err2
}
