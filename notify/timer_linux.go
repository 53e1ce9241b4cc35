//go:build linux

package notify

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Timer is a CLOCK_MONOTONIC timerfd. Re-arming or disarming resets the
// pending expiration count, so an Expirations call after Disarm reports 0.
type Timer struct {
	fd     int
	closed atomic.Bool
	buf    [8]byte
}

// NewTimer creates a disarmed, non-blocking, close-on-exec timerfd.
func NewTimer() (*Timer, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_CLOEXEC|unix.TFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("notify: timerfd_create: %w", err)
	}
	return &Timer{fd: fd}, nil
}

// Fd returns the timerfd, for polling.
func (t *Timer) Fd() int { return t.fd }

// Arm schedules the first expiration after initial, then every interval.
// A zero interval arms a single shot, and a zero (or negative) initial
// disarms, matching timerfd_settime.
func (t *Timer) Arm(initial, interval time.Duration) error {
	if initial < 0 {
		initial = 0
	}
	if interval < 0 {
		interval = 0
	}
	return t.settime(0, &unix.ItimerSpec{
		Value:    unix.NsecToTimespec(int64(initial)),
		Interval: unix.NsecToTimespec(int64(interval)),
	})
}

// ArmAt schedules a single expiration at an absolute CLOCK_MONOTONIC time,
// in nanoseconds. Deadlines in the past expire immediately, and deadlines
// beyond the range of a timespec are clamped to the furthest representable
// time.
func (t *Timer) ArmAt(deadline uint64) error {
	switch {
	case deadline == 0:
		// an all-zero value would disarm
		deadline = 1
	case deadline > math.MaxInt64:
		deadline = math.MaxInt64
	}
	return t.settime(unix.TFD_TIMER_ABSTIME, &unix.ItimerSpec{
		Value: unix.NsecToTimespec(int64(deadline)),
	})
}

// Disarm stops the timer and discards pending expirations.
func (t *Timer) Disarm() error {
	return t.settime(0, &unix.ItimerSpec{})
}

func (t *Timer) settime(flags int, spec *unix.ItimerSpec) error {
	if t.closed.Load() {
		return ErrClosed
	}
	if err := unix.TimerfdSettime(t.fd, flags, spec, nil); err != nil {
		return fmt.Errorf("notify: timerfd_settime: %w", err)
	}
	return nil
}

// Expirations reads and resets the expiration count, returning 0 if the
// timer has not expired since it was last read or (re)armed.
func (t *Timer) Expirations() (uint64, error) {
	if t.closed.Load() {
		return 0, ErrClosed
	}
	n, err := readFD(t.fd, t.buf[:])
	if err == unix.EAGAIN {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("notify: timerfd read: %w", err)
	}
	if n != len(t.buf) {
		return 0, fmt.Errorf("notify: timerfd read %d bytes: %w", n, ErrShortRead)
	}
	return binary.NativeEndian.Uint64(t.buf[:]), nil
}

// Close closes the timerfd.
func (t *Timer) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	return closeFD(&t.fd)
}
