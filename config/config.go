// Package config resolves the launcher configuration: built-in defaults,
// then an optional YAML file, then the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"

	yaml "github.com/goccy/go-yaml"
	"github.com/joeycumines/go-wlpacer/locale"
	"github.com/joeycumines/go-wlpacer/logging"
	"github.com/joeycumines/go-wlpacer/session"
	"github.com/joeycumines/logiface"
)

// Environment variables read by Load.
const (
	EnvPixelRatio       = "FLUTTER_WAYLAND_PIXEL_RATIO"
	EnvMainUI           = "FLUTTER_WAYLAND_MAIN_UI"
	EnvDebug            = "FLUTTER_LAUNCHER_WAYLAND_DEBUG"
	EnvLang             = "LANG"
	EnvCgroupMemoryPath = "FLUTTER_LAUNCHER_WAYLAND_CGROUP_MEMORY_PATH"
	EnvMemoryWatermarks = "FLUTTER_LAUNCHER_WAYLAND_MEMORY_WARNING_WATERMARK_BYTES"
)

// Config mirrors the YAML file.
type Config struct {
	// PixelRatio overrides the device pixel ratio. 1 by default.
	PixelRatio float64 `yaml:"pixel_ratio" json:"pixel_ratio"`
	// MainUI grabs the keyboard at start.
	MainUI bool `yaml:"main_ui" json:"main_ui"`
	// LogLevel is a syslog(3) priority name, or a unique prefix of one.
	LogLevel string `yaml:"log_level" json:"log_level"`
	// Locale is in setlocale(3) format, e.g. "en_US.UTF-8".
	Locale string `yaml:"locale" json:"locale"`
	// Width and Height are the initial window size. 1920x1080 by default.
	Width  int32 `yaml:"width" json:"width"`
	Height int32 `yaml:"height" json:"height"`
	// CgroupMemoryPath is the cgroup v1 memory controller directory. The
	// memory watcher is disabled when empty.
	CgroupMemoryPath string `yaml:"cgroup_memory_path" json:"cgroup_memory_path"`
	// MemoryWatermarks are usage levels, in bytes, that trigger a low memory
	// warning. Sorted and deduplicated by Load.
	MemoryWatermarks []uint64 `yaml:"memory_warning_watermarks" json:"memory_warning_watermarks"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		PixelRatio: 1,
		LogLevel:   "info",
		Width:      session.DefaultWidth,
		Height:     session.DefaultHeight,
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path, or one that does not exist, is defaults only.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	// sanity clamps
	if cfg.PixelRatio <= 0 {
		cfg.PixelRatio = 1
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		cfg.Width, cfg.Height = session.DefaultWidth, session.DefaultHeight
	}
	cfg.MemoryWatermarks = normalizeWatermarks(cfg.MemoryWatermarks)

	return cfg, nil
}

func (x *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvPixelRatio); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			x.PixelRatio = f
		}
	}
	if v, ok := os.LookupEnv(EnvMainUI); ok {
		// any non-zero number enables it
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		x.MainUI = err == nil && f != 0
	}
	if v, ok := os.LookupEnv(EnvDebug); ok && v != "" {
		x.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvLang); ok && v != "" {
		x.Locale = v
	}
	if v, ok := os.LookupEnv(EnvCgroupMemoryPath); ok {
		x.CgroupMemoryPath = v
	}
	if v, ok := os.LookupEnv(EnvMemoryWatermarks); ok {
		x.MemoryWatermarks = ParseWatermarks(v)
	}
}

// ParseWatermarks parses comma separated byte counts, skipping anything
// that is not a positive integer.
func ParseWatermarks(s string) []uint64 {
	var levels []uint64
	for field := range strings.SplitSeq(s, ",") {
		v, err := strconv.ParseUint(strings.TrimSpace(field), 10, 64)
		if err != nil || v == 0 {
			continue
		}
		levels = append(levels, v)
	}
	return normalizeWatermarks(levels)
}

func normalizeWatermarks(levels []uint64) []uint64 {
	levels = slices.DeleteFunc(levels, func(v uint64) bool { return v == 0 })
	slices.Sort(levels)
	return slices.Compact(levels)
}

// Level returns the configured log level, or [logging.DefaultLevel] if
// LogLevel is not recognised.
func (x Config) Level() logiface.Level {
	level, _ := logging.ParseLevel(x.LogLevel)
	return level
}

// ParsedLocale returns the configured locale, if any.
func (x Config) ParsedLocale() (locale.Locale, bool) {
	l, err := locale.Parse(x.Locale)
	if err != nil {
		return locale.Locale{}, false
	}
	return l, true
}

// MemoryWatcherEnabled reports whether the memory watcher has a cgroup and
// at least one watermark.
func (x Config) MemoryWatcherEnabled() bool {
	return x.CgroupMemoryPath != "" && len(x.MemoryWatermarks) > 0
}

// Logger builds the logger at the configured level. A nil w is stderr.
func (x Config) Logger(w io.Writer) *logiface.Logger[logiface.Event] {
	return logging.New(w, x.Level())
}

// SessionOptions converts the configuration into session options.
func (x Config) SessionOptions() []session.Option {
	opts := []session.Option{
		session.WithPixelRatio(x.PixelRatio),
		session.WithMainUI(x.MainUI),
		session.WithSize(x.Width, x.Height),
	}
	if l, ok := x.ParsedLocale(); ok {
		opts = append(opts, session.WithLocale(l))
	}
	return opts
}
