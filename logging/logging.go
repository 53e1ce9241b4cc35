// Package logging builds the structured loggers used throughout the module,
// writing JSON lines via stumpy.
package logging

import (
	"io"
	"strings"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// DefaultLevel is used when no level is configured.
const DefaultLevel = logiface.LevelInformational

// syslog(3) priority names, in the order of the C library's prioritynames
// table, which is also the order they are matched in.
var priorityNames = []struct {
	name  string
	level logiface.Level
}{
	{"alert", logiface.LevelAlert},
	{"crit", logiface.LevelCritical},
	{"debug", logiface.LevelDebug},
	{"emerg", logiface.LevelEmergency},
	{"err", logiface.LevelError},
	{"error", logiface.LevelError},
	{"info", logiface.LevelInformational},
	{"none", logiface.LevelDisabled},
	{"notice", logiface.LevelNotice},
	{"panic", logiface.LevelEmergency},
	{"warn", logiface.LevelWarning},
	{"warning", logiface.LevelWarning},
	{"trace", logiface.LevelTrace},
}

// ParseLevel maps a syslog priority name, or a prefix of one (e.g. "warn"
// or "deb"), to a level. The first name in table order wins, so "e" is
// "emerg". It returns false for the empty string and unknown names.
func ParseLevel(name string) (logiface.Level, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return DefaultLevel, false
	}
	for _, p := range priorityNames {
		if strings.HasPrefix(p.name, name) {
			return p.level, true
		}
	}
	return DefaultLevel, false
}

// New returns a logger writing JSON lines to w, discarding events below
// level. A nil w writes to stderr.
func New(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	opts := []stumpy.Option{}
	if w != nil {
		opts = append(opts, stumpy.WithWriter(w))
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(opts...),
		stumpy.L.WithLevel(level),
	).Logger()
}
