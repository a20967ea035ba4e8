// Command pagraphd runs the photoacoustic water-vapor analyzer processing
// graph against a live capture device, a recorded WAV file, or the
// deterministic physics simulator, per the subcommand chosen.
package main

import (
	"fmt"
	"os"

	"github.com/tracegas/pagraph/cmd"
)

func main() {
	if err := cmd.RootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
