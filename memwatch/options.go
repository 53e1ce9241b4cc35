package memwatch

import (
	"time"

	"github.com/joeycumines/logiface"
)

type watcherOptions struct {
	logger   *logiface.Logger[logiface.Event]
	cooldown time.Duration
}

// Option configures a Watcher.
type Option interface {
	applyWatcher(*watcherOptions)
}

type optionImpl struct {
	fn func(*watcherOptions)
}

func (o *optionImpl) applyWatcher(opts *watcherOptions) { o.fn(opts) }

// WithLogger sets the logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *watcherOptions) {
		opts.logger = logger
	}}
}

// WithCooldown sets the minimum interval between warnings. Non-positive
// values are ignored.
func WithCooldown(d time.Duration) Option {
	return &optionImpl{func(opts *watcherOptions) {
		if d > 0 {
			opts.cooldown = d
		}
	}}
}

func resolveOptions(opts []Option) *watcherOptions {
	cfg := &watcherOptions{cooldown: DefaultCooldown}
	for _, opt := range opts {
		if opt != nil {
			opt.applyWatcher(cfg)
		}
	}
	return cfg
}
