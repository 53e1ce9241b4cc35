package delayq

import (
	"github.com/joeycumines/logiface"
)

// Option configures a [Queue].
type Option interface {
	applyQueue(*queueOptions)
}

type queueOptions struct {
	wake   func()
	logger *logiface.Logger[logiface.Event]
}

type optionImpl struct {
	fn func(*queueOptions)
}

func (o *optionImpl) applyQueue(opts *queueOptions) { o.fn(opts) }

// WithWake sets a hook called after every Post, outside the queue's lock.
// Typically signals the loop's wake-up descriptor.
func WithWake(fn func()) Option {
	return &optionImpl{func(opts *queueOptions) {
		opts.wake = fn
	}}
}

// WithLogger sets the queue's logger. Posts are logged at trace level.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *queueOptions) {
		opts.logger = logger
	}}
}

func resolveOptions(opts []Option) *queueOptions {
	cfg := &queueOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyQueue(cfg)
		}
	}
	return cfg
}
