// Package paconf decodes the YAML graph configuration consumed by this
// module: the node registry, the connection table, and the
// node-specific parameter tables. File discovery and flag/env layering are
// a CLI-layer concern (cmd/ uses viper for that); this package owns only
// the schema the core consumes.
package paconf

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tracegas/pagraph/internal/errors"
)

// NodeType is the recognized set of node_type values in the graph config.
type NodeType string

const (
	NodeInput               NodeType = "input"
	NodeFilter              NodeType = "filter"
	NodeDifferential        NodeType = "differential"
	NodeChannelSelector     NodeType = "channel_selector"
	NodeChannelMixer        NodeType = "channel_mixer"
	NodeGain                NodeType = "gain"
	NodeRecord              NodeType = "record"
	NodeStreaming           NodeType = "streaming"
	NodePhotoacousticOutput NodeType = "photoacoustic_output"
)

// NodeConfig is one `graph.nodes[]` entry.
type NodeConfig struct {
	ID         string         `yaml:"id"`
	NodeType   NodeType       `yaml:"node_type"`
	Parameters map[string]any `yaml:"parameters"`
}

// ConnectionConfig is one `graph.connections[]` entry.
type ConnectionConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// GraphConfig is the `graph` section: the node registry, the connection
// table, and the designated entry/exit node ids.
type GraphConfig struct {
	Nodes       []NodeConfig       `yaml:"nodes"`
	Connections []ConnectionConfig `yaml:"connections"`
	Input       string             `yaml:"input"`
	Output      []string           `yaml:"output"`
}

// SimulatedSourceConfig is the `simulated_source` section.
// SourceType selects between the trivial "mock" generator and the
// full "universal" physics model; the remaining fields only matter for
// "universal".
type SimulatedSourceConfig struct {
	SourceType             string  `yaml:"source_type"`
	SampleRate             int     `yaml:"sample_rate"`
	FrameSize              int     `yaml:"frame_size"`
	Seed                   uint64  `yaml:"seed"`
	Correlation            float64 `yaml:"correlation"`
	ResonanceFrequency     float64 `yaml:"resonance_frequency"`
	SignalAmplitude        float64 `yaml:"signal_amplitude"`
	LaserModulationDepth   float64 `yaml:"laser_modulation_depth"`
	PhaseOppositionDegrees float64 `yaml:"phase_opposition_degrees"`
	TemperatureDriftFactor float64 `yaml:"temperature_drift_factor"`
	GasFlowNoiseFactor     float64 `yaml:"gas_flow_noise_factor"`
	SNRFactor              float64 `yaml:"snr_factor"`
	ModulationMode         string  `yaml:"modulation_mode"`
	PulseWidthSeconds      float64 `yaml:"pulse_width_seconds"`
	PulseFrequencyHz       float64 `yaml:"pulse_frequency_hz"`
}

// BroadcasterConfig tunes the fan-out ring shared by every Streaming node.
type BroadcasterConfig struct {
	CapacityPerSubscriber int `yaml:"capacity_per_subscriber"`
}

// DeviceConfig selects a live capture device, when the CLI is run against
// real hardware instead of the simulator or a WAV replay.
type DeviceConfig struct {
	DeviceName  string `yaml:"device_name"`
	SampleRate  int    `yaml:"sample_rate"`
	NumChannels int    `yaml:"num_channels"`
	FrameSize   int    `yaml:"frame_size"`
	QueueDepth  int    `yaml:"queue_depth"`
}

// Config is the root of the decoded YAML document.
type Config struct {
	Graph           GraphConfig            `yaml:"graph"`
	SimulatedSource *SimulatedSourceConfig `yaml:"simulated_source,omitempty"`
	Device          *DeviceConfig          `yaml:"device,omitempty"`
	Broadcaster     BroadcasterConfig      `yaml:"broadcaster,omitempty"`
	RecordDirectory string                 `yaml:"record_directory,omitempty"`
}

// Load reads and decodes a graph configuration file. It performs no
// semantic validation beyond what yaml.v3 itself enforces (that is
// pagraph.ProcessingGraph.Validate's job, once the nodes exist); malformed
// YAML or an unreadable file is a ConfigError, surfaced before the graph
// ever starts.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).Component("paconf").Category(errors.CategoryConfiguration).
			Context("path", path).Build()
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.New(err).Component("paconf").Category(errors.CategoryConfiguration).
			Context("path", path).Context("operation", "yaml_unmarshal").Build()
	}
	if len(cfg.Graph.Nodes) == 0 {
		return nil, errors.Newf("config %q declares no graph nodes", path).
			Component("paconf").Category(errors.CategoryConfiguration).Build()
	}
	return &cfg, nil
}
