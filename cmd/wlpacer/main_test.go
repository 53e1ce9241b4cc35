//go:build linux

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeycumines/go-wlpacer/config"
	"github.com/joeycumines/go-wlpacer/eventloop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEnv_json(t *testing.T) {
	t.Setenv(config.EnvPixelRatio, "2")
	t.Setenv(config.EnvLang, "fr_CA.UTF-8")
	t.Setenv(config.EnvMemoryWatermarks, "20,10")

	out, err := execute(t, "env", "--format", "json")
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, 2.0, cfg.PixelRatio)
	assert.Equal(t, "fr_CA.UTF-8", cfg.Locale)
	assert.Equal(t, []uint64{10, 20}, cfg.MemoryWatermarks)
}

func TestEnv_text(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("locale: de_DE\n"), 0o600))
	t.Setenv(config.EnvLang, "")
	t.Setenv(config.EnvDebug, "")

	out, err := execute(t, "env", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "locale: de_DE\n")
	assert.Contains(t, out, "# locale: de_DE (de-DE)\n")
	assert.Contains(t, out, "# memory watcher: false\n")
}

func TestRoot_invalidFormat(t *testing.T) {
	_, err := execute(t, "env", "--format", "xml")
	assert.ErrorContains(t, err, `invalid format "xml"`)
}

func TestSimulate(t *testing.T) {
	out, err := execute(t, "simulate", "--quiet", "--duration", "200ms", "--refresh", "10ms", "--format", "json")
	require.NoError(t, err)

	var report struct {
		Period uint64 `json:"period_ns"`
		Pump   struct {
			Vsyncs uint64
		} `json:"pump"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, uint64(10_000_000), report.Period)
	assert.NotZero(t, report.Pump.Vsyncs)
}

func TestSimulate_text(t *testing.T) {
	out, err := execute(t, "simulate", "-q", "-d", "100ms", "--refresh", "10ms", "--task-interval", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "period:         10ms\n")
	assert.Contains(t, out, "vsync latency:")
}

func TestSimulate_badConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: [\n"), 0o600))

	_, err := execute(t, "simulate", "-q", "--config", path)
	require.Error(t, err)
	assert.Equal(t, exitSetup, exitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
	assert.Equal(t, exitFailure, exitCode(eventloop.Fatal(eventloop.KindGPU, errors.New("boom"))))
	assert.Equal(t, exitSetup, exitCode(eventloop.Fatal(eventloop.KindSetup, errors.New("boom"))))
}
