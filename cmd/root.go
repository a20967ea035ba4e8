// Package cmd assembles the pagraph CLI: a cobra root command carrying a
// --config flag plus subcommands for driving the processing graph against
// a live capture device, a WAV replay file, or the physics simulator.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tracegas/pagraph/cmd/device"
	"github.com/tracegas/pagraph/cmd/replay"
	"github.com/tracegas/pagraph/cmd/simulate"
	"github.com/tracegas/pagraph/internal/logging"
)

// RootCommand creates the top-level "pagraphd" command.
func RootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "pagraphd",
		Short: "Photoacoustic water-vapor analyzer processing graph",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logging.Init()
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the graph configuration YAML file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}

	rootCmd.AddCommand(
		device.Command(&configPath),
		replay.Command(&configPath),
		simulate.Command(&configPath),
	)

	return rootCmd
}
