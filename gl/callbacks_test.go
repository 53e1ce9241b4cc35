package gl

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/joeycumines/go-wlpacer/eventloop"
	"github.com/joeycumines/stumpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	makeErr, clearErr, swapErr, resourceErr error
	swaps                                   int
}

func (s *fakeSurface) MakeCurrent() error  { return s.makeErr }
func (s *fakeSurface) ClearCurrent() error { return s.clearErr }
func (s *fakeSurface) SwapBuffers() error {
	s.swaps++
	return s.swapErr
}
func (s *fakeSurface) MakeResourceCurrent() error { return s.resourceErr }

type recordingFailer struct {
	errs []error
	mu   sync.Mutex
}

func (f *recordingFailer) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func TestNew_nilSurface(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, ErrNoSurface)
}

func TestCallbacks_contexts(t *testing.T) {
	surface := new(fakeSurface)
	c, err := New(surface, nil)
	require.NoError(t, err)

	assert.True(t, c.MakeCurrent())
	assert.True(t, c.ClearCurrent())
	assert.True(t, c.MakeResourceCurrent())
	assert.Zero(t, c.FBO())

	surface.makeErr = errors.New("EGL_BAD_MATCH")
	surface.clearErr = errors.New("EGL_BAD_DISPLAY")
	surface.resourceErr = errors.New("EGL_BAD_CONTEXT")
	assert.False(t, c.MakeCurrent())
	assert.False(t, c.ClearCurrent())
	assert.False(t, c.MakeResourceCurrent())
}

func TestCallbacks_presentFailureIsFatal(t *testing.T) {
	surface := new(fakeSurface)
	failer := new(recordingFailer)
	c, err := New(surface, failer)
	require.NoError(t, err)

	assert.True(t, c.Present())
	assert.Empty(t, failer.errs)

	surface.swapErr = errors.New("EGL_BAD_SURFACE")
	assert.False(t, c.Present())
	require.Len(t, failer.errs, 1)
	assert.ErrorIs(t, failer.errs[0], ErrSwapFailed)
	assert.ErrorIs(t, failer.errs[0], surface.swapErr)
	assert.True(t, eventloop.IsFatalKind(failer.errs[0], eventloop.KindGPU))
	assert.Equal(t, 2, surface.swaps)
}

func TestCallbacks_ResolveProc(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``))).Logger()

	primary := map[string]uintptr{"glClear": 0x1000}
	fallback := map[string]uintptr{"glFinish": 0x2000}
	c, err := New(new(fakeSurface), nil,
		WithLogger(logger),
		WithResolver(func(name string) uintptr { return primary[name] }),
		WithFallbackResolver(func(name string) uintptr { return fallback[name] }),
	)
	require.NoError(t, err)

	assert.Equal(t, uintptr(0x1000), c.ResolveProc("glClear"))
	assert.Empty(t, buf.String())

	assert.Equal(t, uintptr(0x2000), c.ResolveProc("glFinish"))
	assert.Equal(t, 1, strings.Count(buf.String(), "gl: using fallback to resolve"))

	assert.Zero(t, c.ResolveProc("glMissing"))
	assert.Equal(t, 1, strings.Count(buf.String(), "gl: tried unsuccessfully to resolve"))
}

func TestCallbacks_ResolveProc_rateLimited(t *testing.T) {
	var buf bytes.Buffer
	logger := stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(&buf), stumpy.WithTimeField(``))).Logger()
	c, err := New(new(fakeSurface), nil, WithLogger(logger))
	require.NoError(t, err)

	for range 20 {
		assert.Zero(t, c.ResolveProc("glMissing"))
	}
	assert.Equal(t, 5, strings.Count(buf.String(), "gl: tried unsuccessfully to resolve"))
}
