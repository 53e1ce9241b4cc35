package vsync

import (
	"sync/atomic"
)

const (
	// DefaultRefreshMilliHz is assumed until the output reports its mode.
	DefaultRefreshMilliHz = 60000

	// DefaultPeriod is the vblank period of DefaultRefreshMilliHz, in ns.
	DefaultPeriod = 1_000_000_000_000 / DefaultRefreshMilliHz
)

// PeriodFromRefresh converts an output refresh rate in mHz (as reported by
// wl_output.mode) to a vblank period in nanoseconds. Non-positive rates
// yield 0.
func PeriodFromRefresh(milliHz int32) uint64 {
	if milliHz <= 0 {
		return 0
	}
	return 1_000_000_000_000 / uint64(milliHz)
}

// Clock holds the current vblank period. The zero value is not usable, use
// NewClock.
type Clock struct {
	period atomic.Uint64
}

// NewClock returns a Clock initialised to DefaultPeriod.
func NewClock() *Clock {
	c := new(Clock)
	c.period.Store(DefaultPeriod)
	return c
}

// SetRefresh updates the period from a refresh rate in mHz, reporting
// whether it was applied. Non-positive rates are ignored.
func (c *Clock) SetRefresh(milliHz int32) bool {
	p := PeriodFromRefresh(milliHz)
	if p == 0 {
		return false
	}
	c.period.Store(p)
	return true
}

// Period returns the vblank period, in ns.
func (c *Clock) Period() uint64 { return c.period.Load() }
