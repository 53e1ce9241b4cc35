//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joeycumines/go-wlpacer/eventloop"
	"github.com/joeycumines/go-wlpacer/internal/sim"
	"github.com/spf13/cobra"
)

type simulateOptions struct {
	*rootOptions
	sim.Options
	Quiet bool
}

func newSimulateCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &simulateOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the pump against a synthetic display and engine",
		Long: `Run a full session against an in-process compositor, refreshing at a fixed
rate, and an engine requesting a vsync per frame and posting platform tasks.
Pacing metrics are printed when the run ends.

Example:
  wlpacer simulate --duration 10s --refresh 8.333ms
  wlpacer simulate --presentation=false --key-hold 1s --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd, opts)
		},
	}

	cmd.Flags().DurationVarP(&opts.Duration, "duration", "d", 5*time.Second, "how long to run for")
	cmd.Flags().DurationVar(&opts.Refresh, "refresh", 16666667*time.Nanosecond, "output refresh period")
	cmd.Flags().DurationVar(&opts.TaskInterval, "task-interval", 4*time.Millisecond, "mean interval between platform tasks (0 disables)")
	cmd.Flags().BoolVar(&opts.Presentation, "presentation", true, "advertise presentation-time feedback")
	cmd.Flags().DurationVar(&opts.KeyHold, "key-hold", 0, "hold a key for this long, exercising key repeat")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "discard logs")

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *simulateOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return eventloop.Fatal(eventloop.KindSetup, err)
	}

	var logOut io.Writer = os.Stderr
	if opts.Quiet {
		logOut = io.Discard
	}
	logger := cfg.Logger(logOut)

	report, err := sim.Run(cmd.Context(), cfg, opts.Options, logger)
	if report != nil {
		out := cmd.OutOrStdout()
		if opts.Format == "json" {
			if err := writeJSON(out, report); err != nil {
				return err
			}
		} else {
			printReport(out, report)
		}
	}
	return err
}

func printReport(w io.Writer, r *sim.Report) {
	fmt.Fprintf(w, "elapsed:        %v\n", r.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "period:         %v\n", time.Duration(r.Period))
	fmt.Fprintf(w, "drift observed: %t\n", r.Drift)

	e := r.Engine
	fmt.Fprintf(w, "frames:         %d (%d late)\n", e.Frames, e.LateFrames)
	fmt.Fprintf(w, "tasks:          %d raster, %d platform\n", e.RasterTasks, e.PlatformTasks)
	fmt.Fprintf(w, "key events:     %d\n", e.KeyEvents)
	fmt.Fprintf(w, "mem warnings:   %d\n", e.LowMemoryWarnings)
	fmt.Fprintf(w, "window:         %dx%d @%g\n", e.Width, e.Height, e.PixelRatio)

	c := r.Compositor
	fmt.Fprintf(w, "vblanks:        %d (%d commits, %d presented, %d discarded)\n", c.Vblanks, c.Commits, c.Presented, c.Discarded)
	fmt.Fprintf(w, "display reads:  %d\n", r.Reads)

	if p := r.Pump; p != nil {
		fmt.Fprintf(w, "iterations:     %d (%d spurious vsync wakes)\n", p.Iterations, p.SpuriousWakes)
		fmt.Fprintf(w, "key repeats:    %d\n", p.KeyRepeats)
		printLatency(w, "vsync latency", p.VsyncLatency)
		printLatency(w, "task lateness", p.TaskLateness)
	}
}

func printLatency(w io.Writer, name string, l eventloop.LatencySnapshot) {
	fmt.Fprintf(w, "%-15s p50=%v p90=%v p99=%v max=%v mean=%v (n=%d)\n",
		name+":", l.P50, l.P90, l.P99, l.Max, l.Mean, l.Count)
}
