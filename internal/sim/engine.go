package sim

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/joeycumines/go-wlpacer/eventloop"
	"github.com/joeycumines/go-wlpacer/gl"
	"github.com/joeycumines/go-wlpacer/keyevent"
	"github.com/joeycumines/go-wlpacer/locale"
	"github.com/joeycumines/logiface"
)

// Task runners, see [eventloop.HostTask].
const (
	RunnerRaster uintptr = iota + 1
	RunnerPlatform
)

// Engine is a host engine that renders a frame per vsync, and posts
// platform tasks with random delays. It requests each vsync from its own
// goroutine, as the engine's UI thread does.
type Engine struct {
	pump     *eventloop.Pump
	renderer *gl.Callbacks
	logger   *logiface.Logger[logiface.Event]
	requests chan struct{}
	interval time.Duration

	mu      sync.Mutex
	lastEnd uint64
	stats   EngineStats
}

// EngineStats counts what the engine received.
type EngineStats struct {
	Frames            uint64
	LateFrames        uint64
	RasterTasks       uint64
	PlatformTasks     uint64
	KeyEvents         uint64
	WindowMetrics     uint64
	LowMemoryWarnings uint64
	Width, Height     int32
	PixelRatio        float64
	Locales           []string
}

// NewEngine creates an engine posting a platform task every interval, on
// average. A non-positive interval posts none.
func NewEngine(interval time.Duration, logger *logiface.Logger[logiface.Event]) *Engine {
	return &Engine{
		logger:   logger,
		interval: interval,
		requests: make(chan struct{}, 1),
	}
}

// Attach sets the pump the engine requests vsyncs from, and the renderer it
// presents with. It must be called before Run.
func (e *Engine) Attach(pump *eventloop.Pump, renderer *gl.Callbacks) {
	e.pump, e.renderer = pump, renderer
}

// Run requests vsyncs, one at a time, and posts platform tasks, until ctx
// is done or the pump stops.
func (e *Engine) Run(ctx context.Context) error {
	e.requests <- struct{}{}

	var ticks <-chan time.Time
	if e.interval > 0 {
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	var token uintptr
	var taskID uint64
	for {
		select {
		case <-ctx.Done():
			return nil

		case <-e.requests:
			token++
			if err := e.pump.RequestVsync(token); err != nil {
				if errors.Is(err, eventloop.ErrLoopTerminated) {
					return nil
				}
				return err
			}

		case <-ticks:
			taskID++
			delay := rand.N(2 * e.interval)
			if err := e.pump.PostTaskAfter(eventloop.HostTask{Runner: RunnerPlatform, ID: taskID}, delay); err != nil {
				if errors.Is(err, eventloop.ErrLoopTerminated) {
					return nil
				}
				return err
			}
		}
	}
}

// OnVsync implements [eventloop.Engine], scheduling the frame's raster
// task at the start of its window, and the next vsync request.
func (e *Engine) OnVsync(token uintptr, start, end uint64) error {
	e.mu.Lock()
	e.stats.Frames++
	if start < e.lastEnd {
		e.stats.LateFrames++
	}
	e.lastEnd = end
	frame := e.stats.Frames
	e.mu.Unlock()

	e.logger.Trace().
		Uint64("token", uint64(token)).
		Uint64("start", start).
		Uint64("end", end).
		Log("engine: vsync")

	if err := e.pump.PostTask(eventloop.HostTask{Runner: RunnerRaster, ID: frame}, start); err != nil {
		return err
	}

	select {
	case e.requests <- struct{}{}:
	default:
	}
	return nil
}

// RunTask implements [eventloop.Engine].
func (e *Engine) RunTask(task eventloop.HostTask) error {
	switch task.Runner {
	case RunnerRaster:
		e.mu.Lock()
		e.stats.RasterTasks++
		e.mu.Unlock()
		if !e.renderer.MakeCurrent() {
			return errors.New("engine: could not make the context current")
		}
		e.renderer.Present()
		e.renderer.ClearCurrent()
		return nil

	case RunnerPlatform:
		e.mu.Lock()
		e.stats.PlatformTasks++
		e.mu.Unlock()
		return nil

	default:
		return errors.New("engine: unknown task runner")
	}
}

// SendWindowMetrics implements [session.Engine].
func (e *Engine) SendWindowMetrics(width, height int32, pixelRatio float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.WindowMetrics++
	e.stats.Width, e.stats.Height, e.stats.PixelRatio = width, height, pixelRatio
	return nil
}

// SendPlatformMessage implements [session.Engine].
func (e *Engine) SendPlatformMessage(channel string, message []byte) error {
	if channel == keyevent.Channel {
		e.mu.Lock()
		e.stats.KeyEvents++
		e.mu.Unlock()
	}
	e.logger.Debug().
		Str("channel", channel).
		RawJSON("message", message).
		Log("engine: platform message")
	return nil
}

// UpdateLocales implements [session.Engine].
func (e *Engine) UpdateLocales(locales []locale.Locale) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.Locales = e.stats.Locales[:0]
	for _, l := range locales {
		e.stats.Locales = append(e.stats.Locales, l.String())
	}
	return nil
}

// NotifyLowMemoryWarning implements [memwatch.Notifier].
func (e *Engine) NotifyLowMemoryWarning() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.LowMemoryWarnings++
	return nil
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() EngineStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats := e.stats
	stats.Locales = append([]string(nil), e.stats.Locales...)
	return stats
}
