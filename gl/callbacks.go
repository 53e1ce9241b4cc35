// Package gl adapts a rendering surface to the callbacks the engine's
// OpenGL renderer drives: context switching, buffer presentation, and
// function resolution.
//
// The engine invokes the callbacks from its raster and IO threads, so
// [Callbacks] is safe for concurrent use, provided the [Surface] is.
package gl

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-wlpacer/eventloop"
	"github.com/joeycumines/logiface"
)

var (
	// ErrSwapFailed is wrapped by the error reported when presenting fails.
	ErrSwapFailed = errors.New("gl: could not swap the buffer")

	// ErrNoSurface is returned by New for a nil surface.
	ErrNoSurface = errors.New("gl: surface is required")
)

// Surface is the windowing system's view of the rendering contexts, e.g.
// an EGL display with onscreen and resource contexts.
type Surface interface {
	// MakeCurrent binds the onscreen context and surface.
	MakeCurrent() error
	// ClearCurrent unbinds any context.
	ClearCurrent() error
	// SwapBuffers presents the onscreen surface.
	SwapBuffers() error
	// MakeResourceCurrent binds the resource (upload) context.
	MakeResourceCurrent() error
}

// Failer receives unrecoverable errors, e.g. [eventloop.Pump].
type Failer interface {
	Fail(err error)
}

// ResolverFunc resolves a GL function by name, returning 0 if unknown.
type ResolverFunc func(name string) uintptr

// Callbacks implements the renderer callbacks on top of a Surface.
type Callbacks struct {
	surface  Surface
	failer   Failer
	primary  ResolverFunc
	fallback ResolverFunc
	logger   *logiface.Logger[logiface.Event]
	warnings *catrate.Limiter
}

// New returns Callbacks rendering to surface, reporting presentation
// failures to failer.
func New(surface Surface, failer Failer, opts ...Option) (*Callbacks, error) {
	if surface == nil {
		return nil, ErrNoSurface
	}
	cfg := resolveOptions(opts)
	return &Callbacks{
		surface:  surface,
		failer:   failer,
		primary:  cfg.primary,
		fallback: cfg.fallback,
		logger:   cfg.logger,
		warnings: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 5,
			time.Minute: 50,
		}),
	}, nil
}

// MakeCurrent binds the onscreen context, logging failures.
func (x *Callbacks) MakeCurrent() bool {
	if err := x.surface.MakeCurrent(); err != nil {
		x.logger.Err().
			Err(err).
			Log("gl: could not make the onscreen context current")
		return false
	}
	return true
}

// ClearCurrent unbinds the current context, logging failures.
func (x *Callbacks) ClearCurrent() bool {
	if err := x.surface.ClearCurrent(); err != nil {
		x.logger.Err().
			Err(err).
			Log("gl: could not clear the context")
		return false
	}
	return true
}

// Present swaps the onscreen buffer. A failure is fatal: it is reported to
// the failer as a GPU error, which stops the pump.
func (x *Callbacks) Present() bool {
	if err := x.surface.SwapBuffers(); err != nil {
		err = eventloop.Fatal(eventloop.KindGPU, fmt.Errorf("%w: %w", ErrSwapFailed, err))
		x.logger.Err().
			Err(err).
			Log("gl: present failed")
		if x.failer != nil {
			x.failer.Fail(err)
		}
		return false
	}
	return true
}

// MakeResourceCurrent binds the resource context, logging failures.
func (x *Callbacks) MakeResourceCurrent() bool {
	if err := x.surface.MakeResourceCurrent(); err != nil {
		x.logger.Err().
			Err(err).
			Log("gl: could not make the resource context current")
		return false
	}
	return true
}

// FBO returns the framebuffer to render to, always the default.
func (x *Callbacks) FBO() uint32 { return 0 }

// ResolveProc resolves a GL function, trying the primary resolver, then the
// fallback. Fallback use, and failures, are logged at a limited rate per
// name.
func (x *Callbacks) ResolveProc(name string) uintptr {
	if x.primary != nil {
		if addr := x.primary(name); addr != 0 {
			return addr
		}
	}

	if x.fallback != nil {
		if _, ok := x.warnings.Allow(name); ok {
			x.logger.Warning().
				Str("name", name).
				Log("gl: using fallback to resolve")
		}
		if addr := x.fallback(name); addr != 0 {
			return addr
		}
	}

	if _, ok := x.warnings.Allow(name); ok {
		x.logger.Warning().
			Str("name", name).
			Log("gl: tried unsuccessfully to resolve")
	}
	return 0
}
