package paconf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegas/pagraph/internal/broadcaster"
	"github.com/tracegas/pagraph/internal/frame"
)

func passthroughGraphConfig() GraphConfig {
	return GraphConfig{
		Nodes: []NodeConfig{
			{ID: "in", NodeType: NodeInput, Parameters: map[string]any{"channels": "dual"}},
			{ID: "bp", NodeType: NodeFilter, Parameters: map[string]any{
				"type": "bandpass", "order": 4, "center_frequency": 2000.0, "bandwidth": 200.0, "channels": "dual",
			}},
			{ID: "diff", NodeType: NodeDifferential},
			{ID: "tap", NodeType: NodeStreaming, Parameters: map[string]any{"channels": "single"}},
		},
		Connections: []ConnectionConfig{
			{From: "in", To: "bp"},
			{From: "bp", To: "diff"},
			{From: "diff", To: "tap"},
		},
		Input:  "in",
		Output: []string{"tap"},
	}
}

func TestBuildConstructsValidGraph(t *testing.T) {
	bc := broadcaster.New(20)
	result, err := Build(passthroughGraphConfig(), BuildDeps{SampleRate: 48000, Broadcaster: bc})
	require.NoError(t, err)
	require.NotNil(t, result.Graph)

	ids := result.Graph.NodeIDs()
	assert.Len(t, ids, 4)
}

func TestBuildRejectsUnknownNodeType(t *testing.T) {
	gc := GraphConfig{
		Nodes: []NodeConfig{{ID: "x", NodeType: "not_a_real_type"}},
		Input: "x", Output: []string{"x"},
	}
	_, err := Build(gc, BuildDeps{SampleRate: 48000})
	assert.Error(t, err)
}

func TestBuildRejectsBadFilterGeometry(t *testing.T) {
	gc := GraphConfig{
		Nodes: []NodeConfig{
			{ID: "in", NodeType: NodeInput, Parameters: map[string]any{"channels": "single"}},
			{ID: "f", NodeType: NodeFilter, Parameters: map[string]any{
				"type": "bandpass", "order": 3, "center_frequency": 2000.0, "bandwidth": 200.0, "channels": "single",
			}},
		},
		Connections: []ConnectionConfig{{From: "in", To: "f"}},
		Input:       "in", Output: []string{"f"},
	}
	_, err := Build(gc, BuildDeps{SampleRate: 48000})
	assert.Error(t, err, "odd band-pass order must fail at construction")
}

func TestBuildStreamingRequiresBroadcaster(t *testing.T) {
	gc := GraphConfig{
		Nodes: []NodeConfig{
			{ID: "in", NodeType: NodeInput, Parameters: map[string]any{"channels": "single"}},
			{ID: "tap", NodeType: NodeStreaming, Parameters: map[string]any{"channels": "single"}},
		},
		Connections: []ConnectionConfig{{From: "in", To: "tap"}},
		Input:       "in", Output: []string{"tap"},
	}
	_, err := Build(gc, BuildDeps{SampleRate: 48000})
	assert.Error(t, err)
}

func TestChannelsOf(t *testing.T) {
	assert.Equal(t, frame.ChannelsDual, channelsOf("dual"))
	assert.Equal(t, frame.ChannelsSingle, channelsOf("single"))
	assert.Equal(t, frame.ChannelsSingle, channelsOf(""))
}
