package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/openmirror/mirrorbox/internal/mirror"
)

func init() {
	rootCmd.AddCommand(newOnceCmd())
}

func newOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single mirror cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromViper()
			if err != nil {
				return err
			}
			// a single cycle never needs the watcher
			cfg.Watch = false

			cmd.SilenceUsage = true

			m := mirror.NewManager(cfg)
			report, err := m.RunOnce(cmd.Context())
			if err != nil {
				slog.Error("cycle failed", "error", err)
				return err
			}

			slog.Info("cycle complete", "changed", report.Changed(), "took", report.Duration)
			return nil
		},
	}
}
