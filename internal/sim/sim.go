//go:build linux

// Package sim runs a session against an in-process display server and host
// engine, to exercise frame pacing without a compositor or GPU.
package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-wlpacer/config"
	"github.com/joeycumines/go-wlpacer/eventloop"
	"github.com/joeycumines/go-wlpacer/gl"
	"github.com/joeycumines/go-wlpacer/memwatch"
	"github.com/joeycumines/go-wlpacer/session"
	"github.com/joeycumines/logiface"
	"golang.org/x/sync/errgroup"
)

// Options configures a simulation.
type Options struct {
	// Duration is how long to run for.
	Duration time.Duration
	// Refresh is the output's refresh period.
	Refresh time.Duration
	// TaskInterval is the mean interval between platform tasks.
	TaskInterval time.Duration
	// Presentation enables presentation-time feedback, otherwise pacing
	// falls back to frame callbacks.
	Presentation bool
	// KeyHold, if positive, holds a key for this long, after the first
	// quarter of the run.
	KeyHold time.Duration
}

// Report is the outcome of a simulation.
type Report struct {
	Elapsed    time.Duration       `json:"elapsed"`
	Period     uint64              `json:"period_ns"`
	Pump       *eventloop.Snapshot `json:"pump,omitempty"`
	Engine     EngineStats         `json:"engine"`
	Compositor CompositorStats     `json:"compositor"`
	Reads      uint64              `json:"display_reads"`
	Drift      bool                `json:"drift"`
}

// Run simulates a session configured by cfg, until opts.Duration elapses,
// or ctx is done. A fatal session error is returned along with the report.
func Run(ctx context.Context, cfg config.Config, opts Options, logger *logiface.Logger[logiface.Event]) (*Report, error) {
	if opts.Refresh <= 0 {
		return nil, errors.New("sim: refresh period must be positive")
	}

	display, err := NewDisplay()
	if err != nil {
		return nil, eventloop.Fatal(eventloop.KindSetup, fmt.Errorf("sim: display: %w", err))
	}
	defer display.Close()

	engine := NewEngine(opts.TaskInterval, logger)
	compositor := NewCompositor(display, opts.Refresh, opts.Presentation)

	pumpOpts := []eventloop.LoopOption{eventloop.WithMetrics(true)}
	if cfg.MemoryWatcherEnabled() {
		watcher, err := memwatch.New(cfg.CgroupMemoryPath, cfg.MemoryWatermarks, engine, memwatch.WithLogger(logger))
		if err != nil {
			return nil, eventloop.Fatal(eventloop.KindSetup, err)
		}
		defer watcher.Close()
		pumpOpts = append(pumpOpts, eventloop.WithSource(watcher))
	}

	sessOpts := append(cfg.SessionOptions(),
		session.WithLogger(logger),
		session.WithPumpOptions(pumpOpts...),
	)
	sess, err := session.New(display, engine, compositor, sessOpts...)
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	renderer, err := gl.New(compositor, sess.Pump(), gl.WithLogger(logger))
	if err != nil {
		return nil, eventloop.Fatal(eventloop.KindSetup, err)
	}
	engine.Attach(sess.Pump(), renderer)
	compositor.Bind(sess)

	if err := sess.StartEngine(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	started := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		compositor.Run(gctx)
		return nil
	})
	compositor.Ping(1)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	if opts.KeyHold > 0 {
		keyboard := NewKeyboard(display, sess)
		keyboard.Attach(25, 400)
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-time.After(opts.Duration / 4):
				release := keyboard.Hold(KeyA, opts.KeyHold)
				<-gctx.Done()
				release.Stop()
			}
			return nil
		})
	}

	runErr := sess.Run(ctx)
	if errors.Is(runErr, context.DeadlineExceeded) || errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	cancel()
	if err := g.Wait(); err != nil && runErr == nil {
		runErr = err
	}

	return &Report{
		Elapsed:    time.Since(started),
		Period:     sess.Clock().Period(),
		Pump:       sess.Pump().Metrics(),
		Engine:     engine.Stats(),
		Compositor: compositor.Stats(),
		Reads:      display.Reads(),
		Drift:      sess.Pump().Bridge().DriftObserved(),
	}, runErr
}
