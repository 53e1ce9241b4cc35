package gl

import (
	"github.com/joeycumines/logiface"
)

type callbackOptions struct {
	logger   *logiface.Logger[logiface.Event]
	primary  ResolverFunc
	fallback ResolverFunc
}

// Option configures Callbacks.
type Option interface {
	applyCallbacks(*callbackOptions)
}

type optionImpl struct {
	fn func(*callbackOptions)
}

func (o *optionImpl) applyCallbacks(opts *callbackOptions) { o.fn(opts) }

// WithLogger sets the logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *callbackOptions) {
		opts.logger = logger
	}}
}

// WithResolver sets the primary function resolver, e.g. eglGetProcAddress.
func WithResolver(fn ResolverFunc) Option {
	return &optionImpl{func(opts *callbackOptions) {
		opts.primary = fn
	}}
}

// WithFallbackResolver sets the resolver tried when the primary fails, e.g.
// a lookup in the process's loaded libraries.
func WithFallbackResolver(fn ResolverFunc) Option {
	return &optionImpl{func(opts *callbackOptions) {
		opts.fallback = fn
	}}
}

func resolveOptions(opts []Option) *callbackOptions {
	cfg := &callbackOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyCallbacks(cfg)
		}
	}
	return cfg
}
