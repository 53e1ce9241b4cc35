//go:build linux

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/joeycumines/go-wlpacer/config"
	"github.com/spf13/cobra"
)

var validFormats = []string{"text", "json"}

// rootOptions holds the global flags.
type rootOptions struct {
	ConfigPath string
	Format     string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "wlpacer",
		Short: "Frame pacing for an embedded UI engine on Wayland",
		Long: `wlpacer drives an embedded UI engine's frame pacing: it answers vsync
requests at vblank boundaries, runs the engine's delayed tasks, and
repeats held keys, all from one event loop.

Configuration is read from an optional YAML file, then the environment
(FLUTTER_WAYLAND_PIXEL_RATIO, FLUTTER_WAYLAND_MAIN_UI,
FLUTTER_LAUNCHER_WAYLAND_DEBUG, LANG,
FLUTTER_LAUNCHER_WAYLAND_CGROUP_MEMORY_PATH and
FLUTTER_LAUNCHER_WAYLAND_MEMORY_WARNING_WATERMARK_BYTES).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newSimulateCommand(opts))
	cmd.AddCommand(newEnvCommand(opts))

	return cmd
}

func (x *rootOptions) load() (config.Config, error) {
	return config.Load(x.ConfigPath)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
