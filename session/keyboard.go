package session

import (
	"github.com/joeycumines/go-wlpacer/keyevent"
	"github.com/joeycumines/go-wlpacer/keyrepeat"
)

type keyboard struct{ s *Session }

func (x *keyboard) Keymap(format uint32, keymap Keymap) {
	if keymap == nil {
		format = KeymapFormatNone
	}
	x.s.keymapFormat = format
	x.s.keymap = keymap
	x.s.logger.Info().
		Uint64("format", uint64(format)).
		Log("key: keymap")
}

func (x *keyboard) Enter(uint32) {
	x.s.logger.Info().Log("key: keyboard enter")
}

func (x *keyboard) Leave(uint32) {
	x.s.logger.Info().Log("key: keyboard leave")
}

// Key sends the event, then arms the repeat timer if the key is a
// repeatable press, or disarms it.
func (x *keyboard) Key(_, _, key uint32, state keyrepeat.KeyState) {
	s := x.s
	s.keyTimer.Record(key, state)

	var err error
	if s.handleKey(key, state, false) {
		err = s.keyTimer.ArmDefault()
	} else {
		err = s.keyTimer.Disarm()
	}
	if err != nil {
		s.logger.Err().
			Err(err).
			Log("key: timer update failed")
	}
}

func (x *keyboard) Modifiers(_, depressed, latched, locked, group uint32) {
	if x.s.keymap != nil {
		x.s.keymap.UpdateMask(depressed, latched, locked, group)
	}
}

func (x *keyboard) RepeatInfo(rate, delay int32) {
	x.s.keyTimer.SetRepeatInfo(rate, delay)
}

// handleKey sends one key message, returning true if the key should
// auto-repeat.
func (s *Session) handleKey(key uint32, state keyrepeat.KeyState, repeat bool) bool {
	if s.keymap == nil || s.keymapFormat == KeymapFormatNone {
		s.warn(warnNoKeymap).Log("key: no keymap, no key event")
		return false
	}

	keycode := key + s.keymapFormat*8
	keysym := s.keymap.Keysym(keycode)
	if keysym == 0 {
		s.warn(warnNoKeysym).
			Uint64("keycode", uint64(keycode)).
			Log("key: no key symbol, no key event")
		return false
	}

	pressed := state == keyrepeat.Pressed
	ev := keyevent.Event{
		Type:      keyevent.KeyUp,
		ScanCode:  keycode,
		KeyCode:   keysym,
		Modifiers: s.locks.Apply(keysym, pressed, s.keymap.Modifiers()),
		Unicode:   s.keymap.Unicode(keysym),
	}
	if pressed {
		ev.Type = keyevent.KeyDown
	}

	s.logger.Trace().
		Uint64("keysym", uint64(keysym)).
		Uint64("unicode", uint64(ev.Unicode)).
		Str("state", state.String()).
		Bool("repeat", repeat).
		Log("key")

	message, _ := ev.MarshalJSON()
	if err := s.engine.SendPlatformMessage(keyevent.Channel, message); err != nil {
		s.logger.Err().
			Err(err).
			Str("message", string(message)).
			Log("key: error sending platform message")
	}

	return pressed && s.keymap.Repeats(keycode)
}
