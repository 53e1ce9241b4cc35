package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joeycumines/go-wlpacer/eventloop"
	"github.com/joeycumines/go-wlpacer/locale"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// pipeDisplay is a display whose events are closures, pushed by the test
// and run by DispatchPending on the pump goroutine.
type pipeDisplay struct {
	incoming []func()
	queued   []func()
	r, w     int
	mu       sync.Mutex
}

func newPipeDisplay(t *testing.T) *pipeDisplay {
	t.Helper()
	var fds [2]int
	require.NoError(t, unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC))
	d := &pipeDisplay{r: fds[0], w: fds[1]}
	t.Cleanup(func() {
		_ = unix.Close(d.r)
		_ = unix.Close(d.w)
	})
	return d
}

// push runs fn on the pump goroutine, and waits for it to complete.
func (d *pipeDisplay) push(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	d.mu.Lock()
	d.incoming = append(d.incoming, func() {
		defer close(done)
		fn()
	})
	d.mu.Unlock()
	_, _ = unix.Write(d.w, []byte{1})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the pump")
	}
}

func (d *pipeDisplay) Fd() int { return d.r }

func (d *pipeDisplay) PrepareRead() bool { return len(d.queued) == 0 }

func (d *pipeDisplay) CancelRead() {}

func (d *pipeDisplay) ReadEvents() error {
	var buf [64]byte
	for {
		if n, err := unix.Read(d.r, buf[:]); n <= 0 || err != nil {
			break
		}
	}
	d.mu.Lock()
	d.queued = append(d.queued, d.incoming...)
	d.incoming = nil
	d.mu.Unlock()
	return nil
}

func (d *pipeDisplay) DispatchPending() error {
	queued := d.queued
	d.queued = nil
	for _, fn := range queued {
		fn()
	}
	return nil
}

func (d *pipeDisplay) Flush() error { return nil }

func (d *pipeDisplay) Valid() bool { return true }

type windowMetrics struct {
	width, height int32
	pixelRatio    float64
}

type platformMessage struct {
	channel string
	message string
}

type fakeEngine struct {
	metrics   []windowMetrics
	messages  []platformMessage
	sentAt    []time.Time
	locales   [][]locale.Locale
	vsyncs    int
	mu        sync.Mutex
	metricErr error
}

func (e *fakeEngine) OnVsync(uintptr, uint64, uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vsyncs++
	return nil
}

func (e *fakeEngine) RunTask(eventloop.HostTask) error { return nil }

func (e *fakeEngine) SendWindowMetrics(width, height int32, pixelRatio float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.metrics = append(e.metrics, windowMetrics{width, height, pixelRatio})
	return e.metricErr
}

func (e *fakeEngine) SendPlatformMessage(channel string, message []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = append(e.messages, platformMessage{channel, string(message)})
	e.sentAt = append(e.sentAt, time.Now())
	return nil
}

func (e *fakeEngine) UpdateLocales(locales []locale.Locale) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locales = append(e.locales, locales)
	return nil
}

func (e *fakeEngine) sentMetrics() []windowMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]windowMetrics(nil), e.metrics...)
}

func (e *fakeEngine) sentMessages() []platformMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]platformMessage(nil), e.messages...)
}

func (e *fakeEngine) messageTimes() []time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]time.Time(nil), e.sentAt...)
}

type fakeWindow struct {
	resizes      [][2]int32
	pongs        []uint32
	frames       int
	feedbacks    int
	grabs        int
	presentation bool
	canGrab      bool
}

func (w *fakeWindow) Resize(width, height int32) { w.resizes = append(w.resizes, [2]int32{width, height}) }

func (w *fakeWindow) Pong(serial uint32) { w.pongs = append(w.pongs, serial) }

func (w *fakeWindow) RequestFrame() { w.frames++ }

func (w *fakeWindow) RequestPresentationFeedback() bool {
	if !w.presentation {
		return false
	}
	w.feedbacks++
	return true
}

func (w *fakeWindow) GrabKeyboard() bool {
	w.grabs++
	return w.canGrab
}

// fakeKeymap maps evdev keycodes (offset by 8) to keysyms. Letters repeat,
// lock keys do not.
type fakeKeymap struct {
	keysyms   map[uint32]uint32
	mods      uint32
	norepeat  map[uint32]bool
	depressed uint32
}

const (
	evdevA        = 30
	evdevCapsLock = 58
	evdevUnknown  = 200
)

func newFakeKeymap() *fakeKeymap {
	return &fakeKeymap{
		keysyms: map[uint32]uint32{
			evdevA + 8:        'a',
			evdevCapsLock + 8: 0xffe5,
		},
		norepeat: map[uint32]bool{evdevCapsLock + 8: true},
	}
}

func (k *fakeKeymap) Keysym(keycode uint32) uint32 { return k.keysyms[keycode] }

func (k *fakeKeymap) Modifiers() uint32 { return k.mods }

func (k *fakeKeymap) UpdateMask(depressed, _, _, _ uint32) { k.depressed = depressed }

func (k *fakeKeymap) Repeats(keycode uint32) bool { return !k.norepeat[keycode] }

func (k *fakeKeymap) Unicode(keysym uint32) uint32 {
	if keysym < 0x80 {
		return keysym
	}
	return 0
}

func newSession(t *testing.T, engine *fakeEngine, window *fakeWindow, opts ...Option) (*Session, *pipeDisplay) {
	t.Helper()
	display := newPipeDisplay(t)
	s, err := New(display, engine, window, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Pump().Shutdown(ctx)
		_ = s.Close()
	})
	return s, display
}

// runSession runs s until cleanup, returning Run's result channel.
func runSession(t *testing.T, s *Session) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Pump().Shutdown(ctx)
		select {
		case <-done:
		case <-ctx.Done():
		}
	})
	require.Eventually(t, func() bool {
		return s.Pump().State() == eventloop.StateSleeping
	}, time.Second, time.Millisecond)
	return done
}
