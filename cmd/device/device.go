// Package device implements the "device" subcommand: drives the graph
// described by the configuration file from a live capture device via
// malgo.
package device

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracegas/pagraph/internal/cliapp"
	"github.com/tracegas/pagraph/internal/logging"
)

// Command builds the "device" subcommand. configPath is bound to the
// root command's persistent --config flag.
func Command(configPath *string) *cobra.Command {
	var (
		deviceName string
		queueDepth int
	)

	cmd := &cobra.Command{
		Use:   "device",
		Short: "Run the processing graph against a live capture device",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliapp.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Device == nil {
				return fmt.Errorf("config %q declares no device section", *configPath)
			}
			if deviceName != "" {
				cfg.Device.DeviceName = deviceName
			}

			src, err := cfg.Device.BuildDevice()
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := src.Close(); closeErr != nil {
					logging.ForComponent("device").Warn("device close failed", "error", closeErr)
				}
			}()

			loaded, err := cliapp.Build(cfg, cfg.Device.SampleRate)
			if err != nil {
				return err
			}

			return cliapp.Run(context.Background(), *configPath, loaded, src, cliapp.RunOptions{
				QueueDepth: queueDepth,
			})
		},
	}

	cmd.Flags().StringVar(&deviceName, "device-name", "", "Override the configured capture device name")
	cmd.Flags().IntVar(&queueDepth, "queue-depth", 4, "Source-to-graph frame queue depth (1-4)")

	return cmd
}
