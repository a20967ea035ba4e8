package sources

import (
	"context"

	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/simulator"
)

// SimulatorSource wraps the physics-grade simulator as a Source so it can
// drive a graph exactly like any other producer.
type SimulatorSource struct {
	sim *simulator.Simulator
}

// NewSimulatorSource wraps an already-constructed Simulator.
func NewSimulatorSource(sim *simulator.Simulator) *SimulatorSource {
	return &SimulatorSource{sim: sim}
}

func (s *SimulatorSource) NextFrame(ctx context.Context) (frame.AudioFrame, error) {
	select {
	case <-ctx.Done():
		return frame.AudioFrame{}, ctx.Err()
	default:
	}
	return s.sim.NextFrame(), nil
}

func (s *SimulatorSource) Close() error { return nil }
