//go:build linux

// Package keyrepeat tracks the last key event and drives its auto-repeat
// with a timerfd, so repeats can be serviced by the same poll loop as every
// other source.
package keyrepeat

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-wlpacer/notify"
	"github.com/joeycumines/logiface"
)

const (
	// DefaultDelay is the repeat delay used until the compositor reports one.
	DefaultDelay = 400

	// DefaultInterval is the repeat interval used until the compositor
	// reports a rate.
	DefaultInterval = 40
)

// KeyState mirrors wl_keyboard.key_state.
type KeyState uint32

const (
	Released KeyState = 0
	Pressed  KeyState = 1
)

func (s KeyState) String() string {
	switch s {
	case Released:
		return "released"
	case Pressed:
		return "pressed"
	default:
		return fmt.Sprintf("KeyState(%d)", uint32(s))
	}
}

// Timer is the key-repeat state of one session. It is owned by the loop
// goroutine, and is not safe for concurrent use.
type Timer struct {
	timer     *notify.Timer
	logger    *logiface.Logger[logiface.Event]
	delay     int32
	interval  int32
	lastKey   uint32
	lastState KeyState
	armed     bool
}

// New creates a disarmed Timer with the default delay and interval.
func New(logger *logiface.Logger[logiface.Event]) (*Timer, error) {
	tm, err := notify.NewTimer()
	if err != nil {
		return nil, err
	}
	return &Timer{
		timer:    tm,
		logger:   logger,
		delay:    DefaultDelay,
		interval: DefaultInterval,
	}, nil
}

// Fd returns the timerfd, for polling.
func (x *Timer) Fd() int { return x.timer.Fd() }

// SetRepeatInfo applies wl_keyboard.repeat_info. A positive rate (repeats
// per second) sets the interval, a positive delay sets the delay, and other
// values leave the current setting unchanged.
func (x *Timer) SetRepeatInfo(rate, delay int32) {
	if rate > 0 {
		x.interval = 1000 / rate
	}
	if delay > 0 {
		x.delay = delay
	}
	x.logger.Info().
		Int("rate", int(rate)).
		Int("delay", int(delay)).
		Int("delay_ms", int(x.delay)).
		Int("interval_ms", int(x.interval)).
		Log("key: repeat info")
}

// Delay returns the current repeat delay, in ms.
func (x *Timer) Delay() int32 { return x.delay }

// Interval returns the current repeat interval, in ms.
func (x *Timer) Interval() int32 { return x.interval }

// Record stores the most recent real key event, which repeats re-send.
func (x *Timer) Record(key uint32, state KeyState) {
	x.lastKey = key
	x.lastState = state
}

// Last returns the most recent real key event.
func (x *Timer) Last() (uint32, KeyState) { return x.lastKey, x.lastState }

// Arm starts repeating after delayMs, then every intervalMs. A zero delay
// disarms.
func (x *Timer) Arm(delayMs, intervalMs int32) error {
	if delayMs <= 0 {
		return x.Disarm()
	}
	if intervalMs < 0 {
		intervalMs = 0
	}
	if err := x.timer.Arm(time.Duration(delayMs)*time.Millisecond, time.Duration(intervalMs)*time.Millisecond); err != nil {
		return fmt.Errorf("keyrepeat: arm: %w", err)
	}
	x.armed = true
	return nil
}

// ArmDefault arms with the current delay and interval.
func (x *Timer) ArmDefault() error { return x.Arm(x.delay, x.interval) }

// Disarm cancels any pending repeat, discarding unread expirations.
func (x *Timer) Disarm() error {
	x.armed = false
	if err := x.timer.Disarm(); err != nil {
		return fmt.Errorf("keyrepeat: disarm: %w", err)
	}
	return nil
}

// Armed reports whether a repeat is scheduled.
func (x *Timer) Armed() bool { return x.armed }

// Expired drains the expiration count, returning the number of intervals
// that elapsed since the last call. Expirations that raced a Disarm are
// dropped.
func (x *Timer) Expired() (uint64, error) {
	n, err := x.timer.Expirations()
	if err != nil {
		return 0, fmt.Errorf("keyrepeat: %w", err)
	}
	if !x.armed {
		return 0, nil
	}
	return n, nil
}

// Close releases the timerfd.
func (x *Timer) Close() error { return x.timer.Close() }
