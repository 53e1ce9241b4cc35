//go:build linux

package keyrepeat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func newTimer(t *testing.T) *Timer {
	t.Helper()
	tm, err := New(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tm.Close() })
	return tm
}

func waitReadable(fd int, timeout time.Duration) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		return err == nil && n > 0
	}
}

func TestTimer_SetRepeatInfo(t *testing.T) {
	tm := newTimer(t)
	assert.Equal(t, int32(DefaultDelay), tm.Delay())
	assert.Equal(t, int32(DefaultInterval), tm.Interval())

	tm.SetRepeatInfo(0, 0)
	assert.Equal(t, int32(400), tm.Delay())
	assert.Equal(t, int32(40), tm.Interval())

	tm.SetRepeatInfo(25, 600)
	assert.Equal(t, int32(600), tm.Delay())
	assert.Equal(t, int32(40), tm.Interval())

	tm.SetRepeatInfo(30, -1)
	assert.Equal(t, int32(600), tm.Delay())
	assert.Equal(t, int32(33), tm.Interval())
}

func TestTimer_armThenDisarm_noRepeats(t *testing.T) {
	tm := newTimer(t)
	require.NoError(t, tm.Arm(10, 5))
	assert.True(t, tm.Armed())
	require.NoError(t, tm.Disarm())
	assert.False(t, tm.Armed())

	assert.False(t, waitReadable(tm.Fd(), 50*time.Millisecond))
	n, err := tm.Expired()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTimer_zeroDelayDisarms(t *testing.T) {
	tm := newTimer(t)
	require.NoError(t, tm.Arm(10, 10))
	require.NoError(t, tm.Arm(0, 10))
	assert.False(t, tm.Armed())
	assert.False(t, waitReadable(tm.Fd(), 30*time.Millisecond))
}

func TestTimer_repeats(t *testing.T) {
	tm := newTimer(t)
	tm.Record(30, Pressed)
	require.NoError(t, tm.Arm(5, 5))

	require.True(t, waitReadable(tm.Fd(), time.Second))
	n, err := tm.Expired()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, uint64(1))

	key, state := tm.Last()
	assert.Equal(t, uint32(30), key)
	assert.Equal(t, Pressed, state)
}

func TestKeyState_String(t *testing.T) {
	assert.Equal(t, "pressed", Pressed.String())
	assert.Equal(t, "released", Released.String())
	assert.Equal(t, "KeyState(7)", KeyState(7).String())
}
