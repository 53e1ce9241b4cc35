package vsync

import (
	"github.com/joeycumines/logiface"
)

// Option configures a [Bridge].
type Option interface {
	applyBridge(*bridgeOptions)
}

type bridgeOptions struct {
	logger  *logiface.Logger[logiface.Event]
	onFatal func(error)
	now     func() uint64
}

type optionImpl struct {
	fn func(*bridgeOptions)
}

func (o *optionImpl) applyBridge(opts *bridgeOptions) { o.fn(opts) }

// WithLogger sets the bridge's logger.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *bridgeOptions) {
		opts.logger = logger
	}}
}

// WithFatal sets a hook receiving protocol violations detected by Deposit,
// typically the loop's Fail method.
func WithFatal(fn func(error)) Option {
	return &optionImpl{func(opts *bridgeOptions) {
		opts.onFatal = fn
	}}
}

// WithNow sets the time source used to stamp deposits, enabling
// DepositedAt.
func WithNow(now func() uint64) Option {
	return &optionImpl{func(opts *bridgeOptions) {
		opts.now = now
	}}
}

func resolveOptions(opts []Option) *bridgeOptions {
	cfg := &bridgeOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyBridge(cfg)
		}
	}
	return cfg
}
