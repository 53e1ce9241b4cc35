//go:build linux

// Package memwatch watches a cgroup v1 memory controller, sending the engine
// low memory warnings as usage crosses configured watermarks.
//
// A [Watcher] is an [eventloop.Source]: the kernel signals its eventfd each
// time usage crosses a registered threshold, in either direction.
package memwatch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/go-wlpacer/eventloop"
	"github.com/joeycumines/go-wlpacer/notify"
	"github.com/joeycumines/logiface"
)

const (
	// UsageFile is the usage counter within the cgroup directory.
	UsageFile = "memory.usage_in_bytes"
	// EventControlFile registers thresholds within the cgroup directory.
	EventControlFile = "cgroup.event_control"
	// DefaultCooldown is the minimum interval between warnings.
	DefaultCooldown = 20 * time.Second
)

var (
	// ErrNoWatermarks is returned by New without any watermark.
	ErrNoWatermarks = errors.New("memwatch: at least one watermark is required")

	// ErrNoNotifier is returned by New for a nil notifier.
	ErrNoNotifier = errors.New("memwatch: notifier is required")
)

// Notifier receives low memory warnings, e.g. the engine.
type Notifier interface {
	NotifyLowMemoryWarning() error
}

// Watcher delivers low memory warnings. It must be serviced by a single
// goroutine.
type Watcher struct {
	event    *notify.Event
	usage    *os.File
	notifier Notifier
	logger   *logiface.Logger[logiface.Event]
	cooldown *catrate.Limiter
	levels   []uint64
	level    int
}

var _ eventloop.Source = (*Watcher)(nil)

// New registers a threshold per watermark (sorted ascending, zero is
// invalid) with the cgroup at dir.
func New(dir string, watermarks []uint64, notifier Notifier, opts ...Option) (*Watcher, error) {
	if notifier == nil {
		return nil, ErrNoNotifier
	}
	if len(watermarks) == 0 {
		return nil, ErrNoWatermarks
	}
	for i, v := range watermarks {
		if v == 0 || (i > 0 && v <= watermarks[i-1]) {
			return nil, fmt.Errorf("memwatch: invalid watermarks: %v", watermarks)
		}
	}
	cfg := resolveOptions(opts)

	usage, err := os.Open(filepath.Join(dir, UsageFile))
	if err != nil {
		return nil, fmt.Errorf("memwatch: %w", err)
	}

	event, err := notify.NewEvent()
	if err != nil {
		_ = usage.Close()
		return nil, fmt.Errorf("memwatch: %w", err)
	}

	w := &Watcher{
		event:    event,
		usage:    usage,
		notifier: notifier,
		logger:   cfg.logger,
		cooldown: catrate.NewLimiter(map[time.Duration]int{cfg.cooldown: 1}),
		levels:   append([]uint64(nil), watermarks...),
	}

	if err := w.register(filepath.Join(dir, EventControlFile)); err != nil {
		_ = w.Close()
		return nil, err
	}

	w.logger.Info().
		Str("cgroup", dir).
		Int("levels", len(w.levels)).
		Log("memwatch: watching memory usage")

	return w, nil
}

func (x *Watcher) register(path string) error {
	control, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("memwatch: %w", err)
	}
	defer control.Close()

	// one write per threshold
	for _, level := range x.levels {
		if _, err := fmt.Fprintf(control, "%d %d %d", x.event.Fd(), x.usage.Fd(), level); err != nil {
			return fmt.Errorf("memwatch: register %d: %w", level, err)
		}
	}
	return nil
}

// Fd returns the eventfd signalled on threshold crossings.
func (x *Watcher) Fd() int { return x.event.Fd() }

// Level returns the number of watermarks at or below the last usage read.
func (x *Watcher) Level() int { return x.level }

// Handle reads the current usage, and warns the notifier if any watermark
// is reached and the cooldown allows.
func (x *Watcher) Handle() error {
	if _, err := x.event.Drain(); err != nil {
		return fmt.Errorf("memwatch: %w", err)
	}

	usage, err := x.Usage()
	if err != nil {
		// leave the watcher registered, the next crossing retries
		x.logger.Err().
			Err(err).
			Log("memwatch: could not read usage")
		return nil
	}

	level := x.levelOf(usage)
	if level != x.level {
		x.logger.Debug().
			Uint64("usage", usage).
			Int("level", level).
			Int("previous", x.level).
			Log("memwatch: level changed")
		x.level = level
	}
	if level == 0 {
		return nil
	}

	if _, ok := x.cooldown.Allow(x); !ok {
		return nil
	}

	x.logger.Notice().
		Uint64("usage", usage).
		Uint64("watermark", x.levels[level-1]).
		Log("memwatch: sending low memory warning")
	if err := x.notifier.NotifyLowMemoryWarning(); err != nil {
		x.logger.Err().
			Err(err).
			Log("memwatch: low memory warning failed")
	}
	return nil
}

// Usage reads the cgroup's current memory usage, in bytes.
func (x *Watcher) Usage() (uint64, error) {
	var buf [32]byte
	n, err := x.usage.ReadAt(buf[:], 0)
	if n == 0 && err != nil {
		return 0, fmt.Errorf("memwatch: read usage: %w", err)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(buf[:n])), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("memwatch: parse usage: %w", err)
	}
	return v, nil
}

func (x *Watcher) levelOf(usage uint64) int {
	var level int
	for level < len(x.levels) && x.levels[level] <= usage {
		level++
	}
	return level
}

// Close releases the descriptors. The kernel drops the registrations.
func (x *Watcher) Close() error {
	return errors.Join(x.event.Close(), x.usage.Close())
}
