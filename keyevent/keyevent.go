// Package keyevent encodes key events as the JSON messages the engine
// expects on the flutter/keyevent channel, in the GTK flavour.
package keyevent

import (
	"strconv"

	"github.com/joeycumines/go-utilpkg/jsonenc"
)

// Channel is the platform channel key events are sent on.
const Channel = "flutter/keyevent"

// Type distinguishes presses from releases.
type Type uint8

const (
	KeyDown Type = iota
	KeyUp
)

func (t Type) String() string {
	if t == KeyUp {
		return "keyup"
	}
	return "keydown"
}

// Event is one key message. ScanCode is the hardware (XKB) keycode, KeyCode
// the keysym, and Modifiers a GDK modifier mask. Unicode is omitted from the
// message when zero.
type Event struct {
	Type      Type
	ScanCode  uint32
	KeyCode   uint32
	Modifiers uint32
	Unicode   uint32
}

// AppendJSON appends the message encoding of e to dst.
func (e Event) AppendJSON(dst []byte) []byte {
	dst = append(dst, `{"type":`...)
	dst = jsonenc.AppendString(dst, e.Type.String())
	dst = append(dst, `,"keymap":`...)
	dst = jsonenc.AppendString(dst, "linux")
	dst = append(dst, `,"scanCode":`...)
	dst = strconv.AppendUint(dst, uint64(e.ScanCode), 10)
	dst = append(dst, `,"toolkit":`...)
	dst = jsonenc.AppendString(dst, "gtk")
	dst = append(dst, `,"keyCode":`...)
	dst = strconv.AppendUint(dst, uint64(e.KeyCode), 10)
	dst = append(dst, `,"modifiers":`...)
	dst = strconv.AppendUint(dst, uint64(e.Modifiers), 10)
	if e.Unicode != 0 {
		dst = append(dst, `,"unicodeScalarValues":`...)
		dst = strconv.AppendUint(dst, uint64(e.Unicode), 10)
	}
	return append(dst, '}')
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	return e.AppendJSON(make([]byte, 0, 128)), nil
}
