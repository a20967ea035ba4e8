// Package replay implements the "replay" subcommand: drives the graph
// described by the configuration file from a recorded WAV file, useful
// for regression-testing a graph configuration against a fixed input
// without capture hardware.
package replay

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/tracegas/pagraph/internal/cliapp"
	"github.com/tracegas/pagraph/internal/logging"
	"github.com/tracegas/pagraph/internal/sources"
)

// Command builds the "replay" subcommand. configPath is bound to the
// root command's persistent --config flag.
func Command(configPath *string) *cobra.Command {
	var (
		wavPath    string
		frameSize  int
		loop       bool
		queueDepth int
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run the processing graph against a recorded WAV file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := sources.OpenWAVReplay(wavPath, frameSize, loop)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := src.Close(); closeErr != nil {
					logging.ForComponent("replay").Warn("wav replay close failed", "error", closeErr)
				}
			}()

			loaded, err := cliapp.LoadAndBuild(*configPath, src.SampleRate())
			if err != nil {
				return err
			}

			return cliapp.Run(context.Background(), *configPath, loaded, src, cliapp.RunOptions{
				QueueDepth: queueDepth,
			})
		},
	}

	cmd.Flags().StringVar(&wavPath, "wav", "", "Path to the WAV file to replay (required)")
	_ = cmd.MarkFlagRequired("wav")
	cmd.Flags().IntVar(&frameSize, "frame-size", 4096, "Samples per frame")
	cmd.Flags().BoolVar(&loop, "loop", false, "Loop the file instead of exiting at end-of-file")
	cmd.Flags().IntVar(&queueDepth, "queue-depth", 4, "Source-to-graph frame queue depth (1-4)")

	return cmd
}
