// Package vsync implements the handoff of presentation tokens between the
// engine's vsync callback and the loop that answers it, along with the frame
// clock used to place each answer on a vblank boundary.
package vsync

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

var (
	// ErrTokenPending is returned by Deposit when a previous token has not
	// yet been taken. The engine must never request a second vsync before
	// the first is answered, so this is a protocol violation.
	ErrTokenPending = errors.New("vsync: token already pending")

	// ErrZeroToken is returned by Deposit for the reserved token value 0.
	ErrZeroToken = errors.New("vsync: zero token")
)

// Notifier wakes the loop. Each successful Deposit sends exactly once.
type Notifier interface {
	Send() error
}

// Bridge is the single-slot mailbox carrying at most one outstanding token.
// Deposit may be called from any goroutine; every other method belongs to the
// loop goroutine, except where noted.
type Bridge struct {
	notifier      Notifier
	clock         *Clock
	logger        *logiface.Logger[logiface.Event]
	onFatal       func(error)
	now           func() uint64
	pending       atomic.Uintptr
	depositedAt   atomic.Uint64
	lastPresented atomic.Uint64
	clockID       uint32
	hasClockID    bool
	driftWarned   bool
}

// NewBridge returns a Bridge which wakes via notifier. A nil clock uses
// NewClock.
func NewBridge(notifier Notifier, clock *Clock, opts ...Option) *Bridge {
	cfg := resolveOptions(opts)
	if clock == nil {
		clock = NewClock()
	}
	return &Bridge{
		notifier: notifier,
		clock:    clock,
		logger:   cfg.logger,
		onFatal:  cfg.onFatal,
		now:      cfg.now,
	}
}

// Clock returns the frame clock used by ComputeWindow.
func (b *Bridge) Clock() *Clock { return b.clock }

// Deposit stores token and wakes the loop. It fails with ErrTokenPending if
// a token is already outstanding, in which case the fatal hook (if any) is
// invoked with the same error. Safe to call from any goroutine.
func (b *Bridge) Deposit(token uintptr) error {
	if token == 0 {
		return ErrZeroToken
	}
	if !b.pending.CompareAndSwap(0, token) {
		err := fmt.Errorf("%w: new token %#x, outstanding %#x", ErrTokenPending, token, b.pending.Load())
		b.logger.Err().
			Err(err).
			Log("vsync: new token arrived before the previous was answered")
		if b.onFatal != nil {
			b.onFatal(err)
		}
		return err
	}
	if b.now != nil {
		b.depositedAt.Store(b.now())
	}
	if err := b.notifier.Send(); err != nil {
		err = fmt.Errorf("vsync: notify: %w", err)
		if b.onFatal != nil {
			b.onFatal(err)
		}
		return err
	}
	return nil
}

// Take atomically reads and clears the pending token. It returns false if
// nothing was pending (e.g. a spurious wake).
func (b *Bridge) Take() (uintptr, bool) {
	token := b.pending.Swap(0)
	return token, token != 0
}

// Pending reports whether a token is outstanding. Safe to call from any
// goroutine.
func (b *Bridge) Pending() bool { return b.pending.Load() != 0 }

// DepositedAt returns the time of the most recent successful Deposit, or 0
// if the bridge was built without a time source.
func (b *Bridge) DepositedAt() uint64 { return b.depositedAt.Load() }

// ComputeWindow returns the next vblank boundary at or after now, and the
// boundary following it, aligned to the last presentation time.
func (b *Bridge) ComputeWindow(now uint64) (current, finish uint64) {
	return Window(now, b.lastPresented.Load(), b.clock.Period())
}

// Window is the arithmetic behind ComputeWindow. A now earlier than last
// (e.g. a presentation timestamp slightly in the future) still yields a
// boundary within one period of now. A zero period is treated as
// DefaultPeriod.
func Window(now, last, period uint64) (current, finish uint64) {
	if period == 0 {
		period = DefaultPeriod
	}
	var phase uint64
	if now >= last {
		phase = (now - last) % period
	} else {
		phase = (period - (last-now)%period) % period
	}
	current = now + (period - phase)
	finish = current + period
	return
}

// OnPresented records a presentation timestamp (ns, on the presentation
// clock) and the compositor's measured refresh interval. A mismatch between
// a non-zero refresh and the current period is logged once per bridge.
// Timestamps older than the last recorded one are ignored.
func (b *Bridge) OnPresented(ts uint64, refresh uint32) {
	b.SetLastPresented(ts)
	if refresh != 0 && uint64(refresh) != b.clock.Period() && !b.driftWarned {
		b.driftWarned = true
		b.logger.Warning().
			Uint64("period_ns", b.clock.Period()).
			Uint64("refresh_ns", uint64(refresh)).
			Log("vsync: variable display rate output")
	}
}

// DriftObserved reports whether OnPresented has seen a refresh interval
// that disagreed with the clock.
func (b *Bridge) DriftObserved() bool { return b.driftWarned }

// SetLastPresented advances the last presented time, never moving it
// backwards.
func (b *Bridge) SetLastPresented(ts uint64) {
	for {
		old := b.lastPresented.Load()
		if ts <= old {
			return
		}
		if b.lastPresented.CompareAndSwap(old, ts) {
			return
		}
	}
}

// LastPresented returns the last presented time, 0 before any feedback.
func (b *Bridge) LastPresented() uint64 { return b.lastPresented.Load() }

// SetClockID records the presentation clock, as advertised by
// wp_presentation.clock_id.
func (b *Bridge) SetClockID(id uint32) {
	b.clockID = id
	b.hasClockID = true
}

// ClockID returns the presentation clock, if known.
func (b *Bridge) ClockID() (uint32, bool) { return b.clockID, b.hasClockID }
