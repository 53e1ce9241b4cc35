//go:build linux

package main

import (
	"fmt"

	yaml "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

func newEnvCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Print the resolved configuration",
		Long: `Print the configuration after applying the YAML file (if any) and the
environment, along with the values derived from it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, cfg)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if _, err := out.Write(data); err != nil {
				return err
			}

			fmt.Fprintf(out, "# log level: %s\n", cfg.Level())
			if l, ok := cfg.ParsedLocale(); ok {
				tag, _ := l.Tag()
				fmt.Fprintf(out, "# locale: %s (%s)\n", l, tag)
			} else {
				fmt.Fprintln(out, "# locale: none")
			}
			fmt.Fprintf(out, "# memory watcher: %t\n", cfg.MemoryWatcherEnabled())
			return nil
		},
	}
}
