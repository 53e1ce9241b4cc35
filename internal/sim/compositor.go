package sim

import (
	"context"
	"sync"
	"time"

	"github.com/joeycumines/go-wlpacer/notify"
	"github.com/joeycumines/go-wlpacer/session"
)

// Pusher queues events for the pump goroutine, see [Display.Push].
type Pusher interface {
	Push(event func())
}

// Compositor is a display server with a single output, refreshing at a
// fixed period. It is the session's window, and the renderer's surface.
//
// Each vblank, it answers the pending frame callback, and presents the
// latest commit. Presentation feedback attaches to the next commit, and is
// discarded if another commit replaces it before the vblank.
type Compositor struct {
	display      Pusher
	listeners    *session.Session
	period       time.Duration
	presentation bool
	canGrab      bool

	mu             sync.Mutex
	frameRequested bool
	feedback       bool // attaches to the next commit
	committed      bool
	commitFeedback bool
	discarded      int
	width, height  int32
	stats          CompositorStats
}

// CompositorStats counts the compositor's activity.
type CompositorStats struct {
	Vblanks   uint64
	Frames    uint64
	Commits   uint64
	Presented uint64
	Discarded uint64
	Resizes   uint64
	Pongs     uint64
	Grabbed   bool
}

// NewCompositor creates a compositor refreshing every period. With
// presentation, it advertises a presentation clock, and answers feedback
// requests; otherwise the session paces on frame callbacks.
func NewCompositor(display Pusher, period time.Duration, presentation bool) *Compositor {
	return &Compositor{
		display:      display,
		period:       period,
		presentation: presentation,
		canGrab:      true,
	}
}

// Bind sets the session receiving events.
func (c *Compositor) Bind(s *session.Session) { c.listeners = s }

// Run announces the output and seat, then runs vblanks until ctx is done.
func (c *Compositor) Run(ctx context.Context) {
	s := c.listeners
	refresh := int32(time.Second * 1000 / c.period)
	c.display.Push(func() {
		s.Output().Geometry(0, 0, 520, 290, 0, "wlpacer", "virtual", 0)
		c.mu.Lock()
		w, h := c.width, c.height
		c.mu.Unlock()
		if w <= 0 || h <= 0 {
			w, h = session.DefaultWidth, session.DefaultHeight
		}
		s.Output().Mode(1, w, h, refresh)
		s.Output().Done()
		s.Seat().Capabilities(session.CapabilityKeyboard)
		s.Seat().Name("seat0")
		if c.presentation {
			s.Presentation().ClockID(1) // CLOCK_MONOTONIC
		}
	})

	ticker := time.NewTicker(c.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.vblank()
		}
	}
}

// Ping sends a shell surface ping.
func (c *Compositor) Ping(serial uint32) {
	s := c.listeners
	c.display.Push(func() { s.ShellSurface().Ping(serial) })
}

func (c *Compositor) vblank() {
	c.mu.Lock()
	c.stats.Vblanks++
	frame := c.frameRequested
	c.frameRequested = false
	presented := c.committed && c.commitFeedback
	c.committed, c.commitFeedback = false, false
	discarded := c.discarded
	c.discarded = 0
	if frame {
		c.stats.Frames++
	}
	if presented {
		c.stats.Presented++
	}
	c.mu.Unlock()

	if !frame && !presented && discarded == 0 {
		return
	}

	ts := notify.MonotonicNanos()
	refresh := uint32(c.period)
	s := c.listeners
	c.display.Push(func() {
		for range discarded {
			s.Feedback().Discarded()
		}
		if presented {
			sec := ts / 1e9
			s.Feedback().SyncOutput()
			s.Feedback().Presented(uint32(sec>>32), uint32(sec), uint32(ts%1e9), refresh, 0, 0, 0)
		}
		if frame {
			s.Frame().Done(uint32(ts / 1e6))
		}
	})
}

// Stats returns a copy of the counters.
func (c *Compositor) Stats() CompositorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Resize implements [session.Window].
func (c *Compositor) Resize(width, height int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
	c.stats.Resizes++
}

// Pong implements [session.Window].
func (c *Compositor) Pong(uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Pongs++
}

// RequestFrame implements [session.Window].
func (c *Compositor) RequestFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frameRequested = true
}

// RequestPresentationFeedback implements [session.Window].
func (c *Compositor) RequestPresentationFeedback() bool {
	if !c.presentation {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feedback = true
	return true
}

// GrabKeyboard implements [session.Window].
func (c *Compositor) GrabKeyboard() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Grabbed = c.canGrab
	return c.canGrab
}

// MakeCurrent implements [gl.Surface].
func (c *Compositor) MakeCurrent() error { return nil }

// ClearCurrent implements [gl.Surface].
func (c *Compositor) ClearCurrent() error { return nil }

// MakeResourceCurrent implements [gl.Surface].
func (c *Compositor) MakeResourceCurrent() error { return nil }

// SwapBuffers implements [gl.Surface], committing a buffer for the next
// vblank.
func (c *Compositor) SwapBuffers() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.committed && c.commitFeedback {
		c.discarded++
		c.stats.Discarded++
	}
	c.committed = true
	c.commitFeedback = c.feedback
	c.feedback = false
	c.stats.Commits++
	return nil
}
