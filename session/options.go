package session

import (
	"errors"

	"github.com/joeycumines/go-wlpacer/eventloop"
	"github.com/joeycumines/go-wlpacer/locale"
	"github.com/joeycumines/logiface"
)

type sessionOptions struct {
	logger     *logiface.Logger[logiface.Event]
	locale     *locale.Locale
	pumpOpts   []eventloop.LoopOption
	pixelRatio float64
	width      int32
	height     int32
	mainUI     bool
}

// Option configures a Session.
type Option interface {
	applySession(*sessionOptions) error
}

type optionImpl struct {
	fn func(*sessionOptions) error
}

func (o *optionImpl) applySession(opts *sessionOptions) error { return o.fn(opts) }

// WithLogger sets the logger, which is also passed to the pump.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithPixelRatio overrides the device pixel ratio reported to the engine,
// when the output's physical and pixel dimensions are known.
func WithPixelRatio(ratio float64) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		if ratio <= 0 {
			return errors.New("session: pixel ratio must be positive")
		}
		opts.pixelRatio = ratio
		return nil
	}}
}

// WithMainUI grabs the keyboard at start, if the display server allows it.
func WithMainUI(enabled bool) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		opts.mainUI = enabled
		return nil
	}}
}

// WithLocale sets the preferred locale, sent to the engine at start.
func WithLocale(l locale.Locale) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		opts.locale = &l
		return nil
	}}
}

// WithSize sets the initial window size, in pixels.
func WithSize(width, height int32) Option {
	return &optionImpl{func(opts *sessionOptions) error {
		if width <= 0 || height <= 0 {
			return errors.New("session: invalid screen dimensions")
		}
		opts.width, opts.height = width, height
		return nil
	}}
}

// WithPumpOptions passes options through to the pump, e.g.
// [eventloop.WithMetrics] or [eventloop.WithSource].
func WithPumpOptions(opts ...eventloop.LoopOption) Option {
	return &optionImpl{func(o *sessionOptions) error {
		o.pumpOpts = append(o.pumpOpts, opts...)
		return nil
	}}
}

func resolveOptions(opts []Option) (*sessionOptions, error) {
	cfg := &sessionOptions{
		pixelRatio: 1,
		width:      DefaultWidth,
		height:     DefaultHeight,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applySession(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
