// Package simulate implements the "simulate" subcommand: drives the graph
// described by the configuration file from the deterministic physics
// simulator instead of a device or a file, useful for demos and for
// regression-testing a graph configuration without any external input.
package simulate

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tracegas/pagraph/internal/cliapp"
	"github.com/tracegas/pagraph/internal/sources"
)

// Command builds the "simulate" subcommand. configPath is bound to the
// root command's persistent --config flag.
func Command(configPath *string) *cobra.Command {
	var queueDepth int

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the processing graph against the deterministic physics simulator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliapp.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.SimulatedSource == nil {
				return fmt.Errorf("config %q declares no simulated_source section", *configPath)
			}

			sim, err := cfg.SimulatedSource.BuildSimulator()
			if err != nil {
				return err
			}
			src := sources.NewSimulatorSource(sim)

			sampleRate := cfg.SimulatedSource.SampleRate
			if sampleRate == 0 {
				sampleRate = 48000
			}
			loaded, err := cliapp.Build(cfg, sampleRate)
			if err != nil {
				return err
			}

			return cliapp.Run(context.Background(), *configPath, loaded, src, cliapp.RunOptions{
				QueueDepth: queueDepth,
			})
		},
	}

	cmd.Flags().IntVar(&queueDepth, "queue-depth", 4, "Source-to-graph frame queue depth (1-4)")

	return cmd
}
