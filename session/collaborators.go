package session

import (
	"github.com/joeycumines/go-wlpacer/eventloop"
	"github.com/joeycumines/go-wlpacer/locale"
)

// Engine is the host engine, as seen by the session. All methods are called
// on the pump goroutine.
type Engine interface {
	eventloop.Engine

	// SendWindowMetrics reports the window size, in pixels, and the device
	// pixel ratio.
	SendWindowMetrics(width, height int32, pixelRatio float64) error

	// SendPlatformMessage sends message on channel. The engine must not
	// retain message.
	SendPlatformMessage(channel string, message []byte) error

	// UpdateLocales reports the user's preferred locales, most preferred
	// first.
	UpdateLocales(locales []locale.Locale) error
}

// Window is the session's toplevel surface on the display server. All
// methods are called on the pump goroutine.
type Window interface {
	// Resize resizes the rendering surface.
	Resize(width, height int32)

	// Pong answers a shell surface ping.
	Pong(serial uint32)

	// RequestFrame requests a frame done callback, delivered to the
	// session's [FrameListener].
	RequestFrame()

	// RequestPresentationFeedback requests feedback for the next commit,
	// delivered to the session's [FeedbackListener]. It returns false if
	// the display server lacks presentation-time support.
	RequestPresentationFeedback() bool

	// GrabKeyboard grabs the keyboard, so keys arrive without focus. It
	// returns false if the display server cannot grab.
	GrabKeyboard() bool
}

// Keymap formats, mirroring wl_keyboard.keymap_format.
const (
	KeymapFormatNone  uint32 = 0
	KeymapFormatXKBV1 uint32 = 1
)

// Keymap is a compiled keymap and its modifier state.
type Keymap interface {
	// Keysym returns the keysym for a hardware keycode, or 0 if none.
	Keysym(keycode uint32) uint32

	// Modifiers returns the effective modifiers, as a GDK modifier mask.
	Modifiers() uint32

	// UpdateMask applies wl_keyboard.modifiers.
	UpdateMask(depressed, latched, locked, group uint32)

	// Repeats reports whether the key auto-repeats.
	Repeats(keycode uint32) bool

	// Unicode returns the code point produced by keysym, or 0 if none.
	Unicode(keysym uint32) uint32
}
