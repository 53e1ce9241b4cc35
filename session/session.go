// Package session is the display session: it owns the pump, and implements
// the listeners for each display protocol object, turning protocol events
// into frame clock updates, window metrics and key messages for the engine.
//
// Binding the protocol objects is left to the caller, which dispatches each
// object's events to the matching listener, e.g. [Session.Output]. Every
// listener, like every other Session method unless noted, must be called
// on the pump goroutine (or before Run).
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-wlpacer/eventloop"
	"github.com/joeycumines/go-wlpacer/keyevent"
	"github.com/joeycumines/go-wlpacer/keyrepeat"
	"github.com/joeycumines/go-wlpacer/locale"
	"github.com/joeycumines/go-wlpacer/vsync"
	"github.com/joeycumines/logiface"
)

const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// categories for rate limited warnings
const (
	warnDiscarded = iota
	warnNoKeymap
	warnNoKeysym
)

// Session is one display connection, and the engine it drives.
type Session struct {
	pump     *eventloop.Pump
	bridge   *vsync.Bridge
	clock    *vsync.Clock
	engine   Engine
	window   Window
	keyTimer *keyrepeat.Timer
	logger   *logiface.Logger[logiface.Event]
	warnings *catrate.Limiter
	resolver *locale.Resolver
	locale   *locale.Locale
	keymap   Keymap

	output       *output
	keyboard     *keyboard
	presentation *presentation
	feedback     *feedback
	frame        *frame
	shellSurface *shellSurface
	seat         *seat

	locks keyevent.LockTracker

	pixelRatio     float64
	keymapFormat   uint32
	capabilities   uint32
	width          int32
	height         int32
	physicalWidth  int32
	physicalHeight int32
	engineRunning  bool
	metricsSkipped bool
	mainUI         bool
}

// New creates a session driving engine, rendering to window, and servicing
// display with a new pump.
func New(display eventloop.Display, engine Engine, window Window, opts ...Option) (*Session, error) {
	if engine == nil || window == nil {
		return nil, eventloop.Fatal(eventloop.KindSetup, errors.New("session: engine and window are required"))
	}
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, eventloop.Fatal(eventloop.KindSetup, err)
	}

	s := &Session{
		clock:      vsync.NewClock(),
		engine:     engine,
		window:     window,
		logger:     cfg.logger,
		locale:     cfg.locale,
		pixelRatio: cfg.pixelRatio,
		width:      cfg.width,
		height:     cfg.height,
		mainUI:     cfg.mainUI,
		warnings: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
	}
	if cfg.locale != nil {
		s.resolver = locale.NewResolver(*cfg.locale)
	} else {
		s.resolver = locale.NewResolver()
	}
	s.output = &output{s}
	s.keyboard = &keyboard{s}
	s.presentation = &presentation{s}
	s.feedback = &feedback{s}
	s.frame = &frame{s}
	s.shellSurface = &shellSurface{s}
	s.seat = &seat{s}

	if s.keyTimer, err = keyrepeat.New(cfg.logger); err != nil {
		return nil, eventloop.Fatal(eventloop.KindSetup, fmt.Errorf("session: key repeat timer: %w", err))
	}

	pumpOpts := append([]eventloop.LoopOption{
		eventloop.WithLogger(cfg.logger),
		eventloop.WithClock(s.clock),
		eventloop.WithPresenter(s),
		eventloop.WithKeyRepeat(s.keyTimer, s),
	}, cfg.pumpOpts...)
	if s.pump, err = eventloop.New(display, engine, pumpOpts...); err != nil {
		_ = s.keyTimer.Close()
		return nil, err
	}
	s.bridge = s.pump.Bridge()

	return s, nil
}

// Pump returns the session's pump.
func (s *Session) Pump() *eventloop.Pump { return s.pump }

// Clock returns the frame clock.
func (s *Session) Clock() *vsync.Clock { return s.clock }

// KeyTimer returns the key repeat state.
func (s *Session) KeyTimer() *keyrepeat.Timer { return s.keyTimer }

// Size returns the window size, in pixels.
func (s *Session) Size() (width, height int32) { return s.width, s.height }

// PixelRatio returns the device pixel ratio currently reported to the
// engine.
func (s *Session) PixelRatio() float64 {
	return PixelRatio(s.physicalWidth, s.physicalHeight, s.width, s.height, s.pixelRatio)
}

// StartEngine marks the engine as running, sending it the preferred locale
// and any window metrics that arrived before it started. Failures are setup
// errors.
func (s *Session) StartEngine() error {
	if s.engineRunning {
		return nil
	}
	s.engineRunning = true

	if s.locale != nil {
		s.logger.Info().
			Str("locale", s.locale.String()).
			Log("locale: parsed")
		if err := s.engine.UpdateLocales([]locale.Locale{*s.locale}); err != nil {
			return eventloop.Fatal(eventloop.KindSetup, fmt.Errorf("session: update locales: %w", err))
		}
	}

	if s.metricsSkipped {
		s.metricsSkipped = false
		if err := s.sendWindowMetrics(); err != nil {
			return eventloop.Fatal(eventloop.KindSetup, err)
		}
	}
	return nil
}

// ResolveLocale picks the supported locale best matching the preferred
// locale, answering the engine's locale resolution callback.
func (s *Session) ResolveLocale(supported []locale.Locale) (locale.Locale, bool) {
	l, ok := s.resolver.Resolve(supported)
	s.logger.Info().
		Int("supported", len(supported)).
		Str("resolved", l.String()).
		Log("locale: resolved")
	return l, ok
}

// Run requests the first frame callback, grabs the keyboard if configured
// as the main UI, and runs the pump until the session ends. See
// [eventloop.Pump.Run].
func (s *Session) Run(ctx context.Context) error {
	s.window.RequestFrame()

	if s.mainUI {
		if s.window.GrabKeyboard() {
			s.logger.Info().Log("kbd_grab_manager: grabbed keyboard")
		} else {
			s.logger.Warning().Log("kbd_grab_manager: keyboard grab unavailable")
		}
	}

	return s.pump.Run(ctx)
}

// Close stops the pump, and releases the key repeat timer. It must not be
// called while Run is in progress; use the pump's Shutdown to stop it.
func (s *Session) Close() error {
	err := s.pump.Close()
	if errors.Is(err, eventloop.ErrLoopTerminated) {
		err = nil
	}
	return errors.Join(err, s.keyTimer.Close())
}

// RequestFeedback implements [eventloop.Presenter], requesting presentation
// feedback once the presentation clock is known.
func (s *Session) RequestFeedback() bool {
	if _, ok := s.bridge.ClockID(); !ok {
		return false
	}
	return s.window.RequestPresentationFeedback()
}

// RepeatKey implements [eventloop.RepeatHandler], re-sending the last key
// event.
func (s *Session) RepeatKey() error {
	key, state := s.keyTimer.Last()
	s.handleKey(key, state, true)
	return nil
}

// PixelRatio returns override, or 1 if any of the physical (mm) or pixel
// dimensions is unknown.
func PixelRatio(physicalWidth, physicalHeight, width, height int32, override float64) float64 {
	if physicalWidth <= 0 || physicalHeight <= 0 || width <= 0 || height <= 0 || override <= 0 {
		return 1
	}
	return override
}

func (s *Session) sendWindowMetrics() error {
	ratio := s.PixelRatio()
	err := s.engine.SendWindowMetrics(s.width, s.height, ratio)
	s.logger.Info().
		Int("width", int(s.width)).
		Int("height", int(s.height)).
		Float64("pixel_ratio", ratio).
		Bool("success", err == nil).
		Log("window metrics")
	if err != nil {
		return fmt.Errorf("session: send window metrics: %w", err)
	}
	return nil
}

// updateWindowMetrics sends the current metrics if the engine is running,
// otherwise deferring them to StartEngine.
func (s *Session) updateWindowMetrics() {
	if !s.engineRunning {
		s.metricsSkipped = true
		s.logger.Info().
			Int("width", int(s.width)).
			Int("height", int(s.height)).
			Log("window metrics skipped")
		return
	}
	if err := s.sendWindowMetrics(); err != nil {
		s.logger.Err().Err(err).Log("window metrics failed")
	}
}

// warn logs a warning, at most once a second (and ten times a minute) per
// category.
func (s *Session) warn(category int) *logiface.Builder[logiface.Event] {
	if _, ok := s.warnings.Allow(category); !ok {
		return nil
	}
	return s.logger.Warning()
}
