package session

import (
	"github.com/joeycumines/go-wlpacer/keyrepeat"
)

// OutputListener receives wl_output events.
type OutputListener interface {
	Geometry(x, y, physicalWidth, physicalHeight, subpixel int32, vendor, model string, transform int32)
	Mode(flags uint32, width, height, refresh int32)
	Done()
	Scale(factor int32)
}

// KeyboardListener receives wl_keyboard events. Keymap is given compiled,
// or nil with KeymapFormatNone.
type KeyboardListener interface {
	Keymap(format uint32, keymap Keymap)
	Enter(serial uint32)
	Leave(serial uint32)
	Key(serial, timestamp, key uint32, state keyrepeat.KeyState)
	Modifiers(serial, depressed, latched, locked, group uint32)
	RepeatInfo(rate, delay int32)
}

// PresentationListener receives wp_presentation events.
type PresentationListener interface {
	ClockID(id uint32)
}

// FeedbackListener receives wp_presentation_feedback events.
type FeedbackListener interface {
	SyncOutput()
	Presented(tvSecHi, tvSecLo, tvNsec, refresh, seqHi, seqLo, flags uint32)
	Discarded()
}

// FrameListener receives wl_surface.frame done events.
type FrameListener interface {
	Done(callbackData uint32)
}

// ShellSurfaceListener receives wl_shell_surface events.
type ShellSurfaceListener interface {
	Ping(serial uint32)
	Configure(edges uint32, width, height int32)
	PopupDone()
}

// SeatListener receives wl_seat events.
type SeatListener interface {
	Capabilities(capabilities uint32)
	Name(name string)
}

// Seat capabilities, mirroring wl_seat.capability.
const (
	CapabilityPointer  uint32 = 1
	CapabilityKeyboard uint32 = 2
	CapabilityTouch    uint32 = 4
)

// Output returns the listener for the bound output.
func (s *Session) Output() OutputListener { return s.output }

// Keyboard returns the listener for the seat's keyboard.
func (s *Session) Keyboard() KeyboardListener { return s.keyboard }

// Presentation returns the listener for the presentation-time global.
func (s *Session) Presentation() PresentationListener { return s.presentation }

// Feedback returns the listener for presentation feedback objects.
func (s *Session) Feedback() FeedbackListener { return s.feedback }

// Frame returns the listener for frame callbacks.
func (s *Session) Frame() FrameListener { return s.frame }

// ShellSurface returns the listener for the window's shell surface.
func (s *Session) ShellSurface() ShellSurfaceListener { return s.shellSurface }

// Seat returns the listener for the bound seat.
func (s *Session) Seat() SeatListener { return s.seat }

type output struct{ s *Session }

func (x *output) Geometry(posX, posY, physicalWidth, physicalHeight, subpixel int32, vendor, model string, transform int32) {
	x.s.physicalWidth = physicalWidth
	x.s.physicalHeight = physicalHeight
	x.s.logger.Info().
		Int("x", int(posX)).
		Int("y", int(posY)).
		Int("physical_width", int(physicalWidth)).
		Int("physical_height", int(physicalHeight)).
		Int("subpixel", int(subpixel)).
		Str("make", vendor).
		Str("model", model).
		Int("transform", int(transform)).
		Log("output.geometry")
}

func (x *output) Mode(flags uint32, width, height, refresh int32) {
	s := x.s
	if !s.clock.SetRefresh(refresh) {
		s.logger.Warning().
			Int("refresh", int(refresh)).
			Log("output.mode: invalid refresh rate, keeping period")
	}
	s.logger.Info().
		Uint64("flags", uint64(flags)).
		Int("width", int(width)).
		Int("height", int(height)).
		Int("refresh", int(refresh)).
		Uint64("period_ns", s.clock.Period()).
		Log("output.mode")

	s.width, s.height = width, height
	if s.engineRunning {
		s.window.Resize(width, height)
	}
	s.updateWindowMetrics()
}

func (x *output) Done() {
	x.s.logger.Debug().Log("output.done")
}

func (x *output) Scale(factor int32) {
	x.s.logger.Debug().
		Int("factor", int(factor)).
		Log("output.scale")
}

type presentation struct{ s *Session }

func (x *presentation) ClockID(id uint32) {
	x.s.bridge.SetClockID(id)
	x.s.logger.Info().
		Uint64("clk_id", uint64(id)).
		Log("presentation.clk_id")
}

type feedback struct{ s *Session }

func (x *feedback) SyncOutput() {}

func (x *feedback) Presented(tvSecHi, tvSecLo, tvNsec, refresh, seqHi, seqLo, flags uint32) {
	ts := ((uint64(tvSecHi)<<32)+uint64(tvSecLo))*1_000_000_000 + uint64(tvNsec)
	x.s.bridge.OnPresented(ts, refresh)
	x.s.logger.Trace().
		Uint64("presented_ns", ts).
		Uint64("refresh_ns", uint64(refresh)).
		Uint64("seq", uint64(seqHi)<<32|uint64(seqLo)).
		Uint64("flags", uint64(flags)).
		Log("presentation.presented")
}

func (x *feedback) Discarded() {
	x.s.warn(warnDiscarded).Log("presentation.frame dropped")
}

type frame struct{ s *Session }

// Done stands in for presentation feedback: without a presentation clock,
// each frame callback marks a vblank, and requests the next.
func (x *frame) Done(uint32) {
	s := x.s
	if _, ok := s.bridge.ClockID(); ok {
		return
	}
	s.bridge.SetLastPresented(s.pump.Now())
	s.window.RequestFrame()
}

type shellSurface struct{ s *Session }

func (x *shellSurface) Ping(serial uint32) {
	x.s.window.Pong(serial)
}

func (x *shellSurface) Configure(edges uint32, width, height int32) {
	s := x.s
	s.logger.Info().
		Uint64("edges", uint64(edges)).
		Int("width", int(width)).
		Int("height", int(height)).
		Log("shell.configure")
	s.width, s.height = width, height
	s.window.Resize(width, height)
	s.updateWindowMetrics()
}

func (x *shellSurface) PopupDone() {}

type seat struct{ s *Session }

func (x *seat) Capabilities(capabilities uint32) {
	x.s.capabilities = capabilities
	x.s.logger.Info().
		Bool("pointer", capabilities&CapabilityPointer != 0).
		Bool("keyboard", capabilities&CapabilityKeyboard != 0).
		Bool("touch", capabilities&CapabilityTouch != 0).
		Log("seat.capabilities")
}

func (x *seat) Name(name string) {
	x.s.logger.Debug().Str("name", name).Log("seat.name")
}

// Capabilities returns the seat capabilities last advertised.
func (s *Session) Capabilities() uint32 { return s.capabilities }
