package paconf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
graph:
  input: in
  output: [tap]
  nodes:
    - id: in
      node_type: input
      parameters: {channels: dual}
    - id: tap
      node_type: streaming
      parameters: {channels: dual}
  connections:
    - {from: in, to: tap}
simulated_source:
  source_type: universal
  sample_rate: 48000
  frame_size: 4096
  seed: 42
  resonance_frequency: 2000
  signal_amplitude: 0.5
  snr_factor: 20
broadcaster:
  capacity_per_subscriber: 32
`

func TestLoadDecodesGraphAndSimulatedSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "in", cfg.Graph.Input)
	assert.Equal(t, []string{"tap"}, cfg.Graph.Output)
	require.Len(t, cfg.Graph.Nodes, 2)
	assert.Equal(t, NodeInput, cfg.Graph.Nodes[0].NodeType)

	require.NotNil(t, cfg.SimulatedSource)
	assert.Equal(t, "universal", cfg.SimulatedSource.SourceType)
	assert.Equal(t, 48000, cfg.SimulatedSource.SampleRate)
	assert.InDelta(t, 2000.0, cfg.SimulatedSource.ResonanceFrequency, 1e-9)
	assert.Equal(t, 32, cfg.Broadcaster.CapacityPerSubscriber)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadRejectsEmptyGraph(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("graph:\n  nodes: []\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
