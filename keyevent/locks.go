package keyevent

// Keysyms of the lock keys.
const (
	KeyNumLock   uint32 = 0xff7f
	KeyCapsLock  uint32 = 0xffe5
	KeyShiftLock uint32 = 0xffe6
)

// GDK modifier bits.
const (
	ShiftMask   uint32 = 1 << 0
	LockMask    uint32 = 1 << 1
	ControlMask uint32 = 1 << 2
	Mod1Mask    uint32 = 1 << 3
	Mod2Mask    uint32 = 1 << 4
)

// LockTracker reports the lock modifiers by whether the lock keys are
// physically held, rather than by the latched lock state, which is what the
// engine's GTK key handling expects. The zero value is ready to use.
type LockTracker struct {
	shiftLock bool
	capsLock  bool
	numLock   bool
}

// Apply records a key transition and returns mods with the lock bits
// replaced by the pressed state of the lock keys.
func (x *LockTracker) Apply(keysym uint32, pressed bool, mods uint32) uint32 {
	switch keysym {
	case KeyNumLock:
		x.numLock = pressed
	case KeyCapsLock:
		x.capsLock = pressed
	case KeyShiftLock:
		x.shiftLock = pressed
	}
	state := mods &^ (LockMask | Mod2Mask)
	if x.shiftLock || x.capsLock {
		state |= LockMask
	}
	if x.numLock {
		state |= Mod2Mask
	}
	return state
}
