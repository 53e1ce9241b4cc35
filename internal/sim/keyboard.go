package sim

import (
	"time"

	"github.com/joeycumines/go-wlpacer/keyevent"
	"github.com/joeycumines/go-wlpacer/keyrepeat"
	"github.com/joeycumines/go-wlpacer/session"
)

// evdev keycodes
const (
	KeyA        uint32 = 30
	KeyCapsLock uint32 = 58
	KeySpace    uint32 = 57
)

// Keymap is a fixed US layout, covering a handful of keys.
type Keymap struct {
	depressed, locked uint32
}

var keysyms = map[uint32]uint32{
	KeyA + 8:        'a',
	KeySpace + 8:    ' ',
	KeyCapsLock + 8: keyevent.KeyCapsLock,
}

// Keysym implements [session.Keymap].
func (k *Keymap) Keysym(keycode uint32) uint32 { return keysyms[keycode] }

// Modifiers implements [session.Keymap].
func (k *Keymap) Modifiers() uint32 { return k.depressed | k.locked }

// UpdateMask implements [session.Keymap].
func (k *Keymap) UpdateMask(depressed, _, locked, _ uint32) {
	k.depressed, k.locked = depressed, locked
}

// Repeats implements [session.Keymap]. Lock keys do not repeat.
func (k *Keymap) Repeats(keycode uint32) bool { return keycode != KeyCapsLock+8 }

// Unicode implements [session.Keymap].
func (k *Keymap) Unicode(keysym uint32) uint32 {
	if keysym < 0x80 {
		return keysym
	}
	return 0
}

// Keyboard sends the session's keyboard events, via the display.
type Keyboard struct {
	display Pusher
	session *session.Session
	serial  uint32
}

// NewKeyboard creates a keyboard for s. Call Attach before any key.
func NewKeyboard(display Pusher, s *session.Session) *Keyboard {
	return &Keyboard{display: display, session: s}
}

// Attach sends the keymap, repeat info (rate per second, delay in ms), and
// keyboard focus.
func (k *Keyboard) Attach(rate, delay int32) {
	s := k.session
	k.display.Push(func() {
		s.Keyboard().Keymap(session.KeymapFormatXKBV1, new(Keymap))
		s.Keyboard().RepeatInfo(rate, delay)
		s.Keyboard().Enter(k.next())
	})
}

// Hold presses key, releasing it after d. Stopping the returned timer
// leaves the key held.
func (k *Keyboard) Hold(key uint32, d time.Duration) *time.Timer {
	k.send(key, keyrepeat.Pressed)
	return time.AfterFunc(d, func() { k.send(key, keyrepeat.Released) })
}

func (k *Keyboard) send(key uint32, state keyrepeat.KeyState) {
	s := k.session
	k.display.Push(func() {
		s.Keyboard().Key(k.next(), uint32(time.Now().UnixMilli()), key, state)
	})
}

// next is only called on the pump goroutine.
func (k *Keyboard) next() uint32 {
	k.serial++
	return k.serial
}
