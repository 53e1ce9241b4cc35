package eventloop

import (
	"errors"

	"github.com/joeycumines/go-wlpacer/vsync"
	"github.com/joeycumines/logiface"
)

// loopOptions holds configuration options for Pump creation.
type loopOptions struct {
	logger         *logiface.Logger[logiface.Event]
	clock          *vsync.Clock
	now            func() uint64
	presenter      Presenter
	repeatTimer    RepeatTimer
	repeatHandler  RepeatHandler
	sources        []Source
	metricsEnabled bool
}

// --- Loop Options ---

// LoopOption configures a Pump instance.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements LoopOption.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithLogger sets the logger used by the pump and the components it builds.
// A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables pacing metrics, accessible via Pump.Metrics().
func WithMetrics(enabled bool) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithClock sets the frame clock, e.g. one shared with the output listener.
func WithClock(clock *vsync.Clock) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.clock = clock
		return nil
	}}
}

// WithNow sets the CLOCK_MONOTONIC time source, in ns.
func WithNow(now func() uint64) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if now == nil {
			return errors.New("eventloop: nil time source")
		}
		opts.now = now
		return nil
	}}
}

// WithPresenter sets the presentation feedback hook, consulted for every
// vsync answered.
func WithPresenter(presenter Presenter) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.presenter = presenter
		return nil
	}}
}

// WithKeyRepeat services timer, calling handler for each batch of
// expirations. The pump does not take ownership of timer.
func WithKeyRepeat(timer RepeatTimer, handler RepeatHandler) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if timer == nil || handler == nil {
			return errors.New("eventloop: key repeat requires a timer and handler")
		}
		opts.repeatTimer = timer
		opts.repeatHandler = handler
		return nil
	}}
}

// WithSource adds a descriptor to service. The pump does not take ownership
// of the source.
func WithSource(source Source) LoopOption {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if source == nil {
			return errors.New("eventloop: nil source")
		}
		opts.sources = append(opts.sources, source)
		return nil
	}}
}

// resolveLoopOptions applies LoopOption instances to loopOptions.
func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
