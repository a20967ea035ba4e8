package hotreload

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegas/pagraph/internal/broadcaster"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/paconf"
	"github.com/tracegas/pagraph/internal/pagraph"
)

func filterGraphConfig(centerHz float64) paconf.Config {
	return paconf.Config{
		Graph: paconf.GraphConfig{
			Input:  "in",
			Output: []string{"f"},
			Nodes: []paconf.NodeConfig{
				{ID: "in", NodeType: paconf.NodeInput, Parameters: map[string]any{"channels": "single"}},
				{ID: "f", NodeType: paconf.NodeFilter, Parameters: map[string]any{
					"type": "bandpass", "order": 4, "center_frequency": centerHz, "bandwidth": 100.0, "channels": "single",
				}},
			},
			Connections: []paconf.ConnectionConfig{{From: "in", To: "f"}},
		},
	}
}

func TestApplyHotReloadsFilterCenter(t *testing.T) {
	cur := filterGraphConfig(1000)
	result, err := paconf.Build(cur.Graph, paconf.BuildDeps{SampleRate: 48000})
	require.NoError(t, err)

	ctrl := New(&cur, result.Graph)

	next := filterGraphConfig(2000)
	report, err := ctrl.Apply(&next)
	require.NoError(t, err)

	assert.Contains(t, report.AppliedNodes, "f")
	assert.Empty(t, report.RequiresRestart)
}

func TestReloadedFilterShiftsResponseWithoutResettingCounters(t *testing.T) {
	const (
		sampleRate = 48000
		frameSize  = 4096
		toneHz     = 2000.0
	)

	cur := filterGraphConfig(1000)
	result, err := paconf.Build(cur.Graph, paconf.BuildDeps{SampleRate: sampleRate})
	require.NoError(t, err)
	g := result.Graph

	toneFrame := func(n uint64) frame.AudioFrame {
		samples := make([]float32, frameSize)
		for i := range samples {
			ti := float64(n)*frameSize + float64(i)
			samples[i] = float32(math.Sin(2 * math.Pi * toneHz * ti / sampleRate))
		}
		return frame.NewSingle(samples, sampleRate, n, 0)
	}
	rms := func(f frame.AudioFrame) float64 {
		var sum float64
		for _, s := range f.Single.Samples {
			sum += float64(s) * float64(s)
		}
		return math.Sqrt(sum / float64(f.Len()))
	}

	// A 2 kHz tone through a 1 kHz band-pass barely registers.
	var before float64
	for n := uint64(0); n < 5; n++ {
		outputs, err := g.Execute(context.Background(), toneFrame(n))
		require.NoError(t, err)
		before = rms(outputs["f"])
	}

	ctrl := New(&cur, g)
	next := filterGraphConfig(2000)
	report, err := ctrl.Apply(&next)
	require.NoError(t, err)
	require.Contains(t, report.AppliedNodes, "f")

	// Re-centered on the tone, the response comes up; the node's counters
	// keep running across the reload.
	var after float64
	for n := uint64(5); n < 15; n++ {
		outputs, err := g.Execute(context.Background(), toneFrame(n))
		require.NoError(t, err)
		after = rms(outputs["f"])
	}

	assert.Greater(t, after, before*10)
	assert.EqualValues(t, 15, g.Node(pagraph.NodeId("f")).Statistics().FramesProcessed)
}

func TestApplyFlagsDeviceIdentityChangeAsRestart(t *testing.T) {
	cur := filterGraphConfig(1000)
	cur.Device = &paconf.DeviceConfig{DeviceName: "mic-a"}
	result, err := paconf.Build(cur.Graph, paconf.BuildDeps{SampleRate: 48000})
	require.NoError(t, err)

	ctrl := New(&cur, result.Graph)

	next := filterGraphConfig(1000)
	next.Device = &paconf.DeviceConfig{DeviceName: "mic-b"}
	report, err := ctrl.Apply(&next)
	require.NoError(t, err)

	assert.Equal(t, "source device identity cannot change without a restart",
		report.RequiresRestart[SectionSourceDeviceIdentity])
}

func TestApplyFlagsGraphStructureChangeAsRestart(t *testing.T) {
	cur := filterGraphConfig(1000)
	result, err := paconf.Build(cur.Graph, paconf.BuildDeps{SampleRate: 48000})
	require.NoError(t, err)

	ctrl := New(&cur, result.Graph)

	next := filterGraphConfig(1000)
	next.Graph.Nodes = append(next.Graph.Nodes, paconf.NodeConfig{
		ID: "g", NodeType: paconf.NodeGain, Parameters: map[string]any{"value": 3.0, "channels": "single"},
	})
	report, err := ctrl.Apply(&next)
	require.NoError(t, err)

	assert.Contains(t, report.RequiresRestart, SectionGraphStructure)
}

func TestApplyRequiresRestartForStreamingIDChange(t *testing.T) {
	bc := broadcaster.New(20)
	cur := paconf.Config{Graph: paconf.GraphConfig{
		Input: "in", Output: []string{"tap"},
		Nodes: []paconf.NodeConfig{
			{ID: "in", NodeType: paconf.NodeInput, Parameters: map[string]any{"channels": "single"}},
			{ID: "tap", NodeType: paconf.NodeStreaming, Parameters: map[string]any{"channels": "single", "id": "tap"}},
		},
		Connections: []paconf.ConnectionConfig{{From: "in", To: "tap"}},
	}}
	result, err := paconf.Build(cur.Graph, paconf.BuildDeps{SampleRate: 48000, Broadcaster: bc})
	require.NoError(t, err)

	ctrl := New(&cur, result.Graph)

	next := cur
	next.Graph.Nodes = append([]paconf.NodeConfig(nil), cur.Graph.Nodes...)
	next.Graph.Nodes[1] = paconf.NodeConfig{
		ID: "tap", NodeType: paconf.NodeStreaming, Parameters: map[string]any{"channels": "single", "id": "renamed"},
	}

	report, err := ctrl.Apply(&next)
	require.NoError(t, err)
	assert.Equal(t, "streaming node id change requires restart", report.RequiresRestart["tap"])
}
