package nodes

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegas/pagraph/internal/broadcaster"
	"github.com/tracegas/pagraph/internal/filterbank"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/pagraph"
)

func TestInputNodePassesThroughAndRejectsWrongLayout(t *testing.T) {
	t.Parallel()
	n := NewInput("in", frame.ChannelsSingle)
	f := frame.NewSingle([]float32{1, 2, 3}, 48000, 1, 0)

	out, err := n.Process(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, f.Single.Samples, out.Single.Samples)

	_, err = n.Process(context.Background(), frame.NewDual([]float32{1}, []float32{1}, 48000, 1, 0))
	assert.Error(t, err)
}

func TestDifferentialSubtractsChannels(t *testing.T) {
	t.Parallel()
	n := NewDifferential("diff")
	f := frame.NewDual([]float32{1, 2, 3}, []float32{0.5, 0.5, 0.5}, 48000, 1, 0)

	out, err := n.Process(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, frame.ChannelsSingle, out.Channels)
	assert.InDeltaSlice(t, []float32{0.5, 1.5, 2.5}, out.Single.Samples, 1e-6)
}

func TestDifferentialRejectsSingleInput(t *testing.T) {
	t.Parallel()
	n := NewDifferential("diff")
	_, err := n.Process(context.Background(), frame.NewSingle([]float32{1}, 48000, 1, 0))
	assert.Error(t, err)
}

func TestChannelSelectorEmitsTargetChannel(t *testing.T) {
	t.Parallel()
	n := NewChannelSelector("sel", TargetChannelB)
	f := frame.NewDual([]float32{1, 2}, []float32{9, 9}, 48000, 1, 0)

	out, err := n.Process(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 9}, out.Single.Samples)
}

func TestChannelMixerStrategiesCommuteForAddAndAverage(t *testing.T) {
	t.Parallel()
	f := frame.NewDual([]float32{1, 2}, []float32{3, 4}, 48000, 1, 0)

	add := NewChannelMixer("mix", MixAdd)
	outAdd, err := add.Process(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 6}, outAdd.Single.Samples)

	avg := NewChannelMixer("mix", MixAverage)
	outAvg, err := avg.Process(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3}, outAvg.Single.Samples)
}

func TestGainScalesAndClamps(t *testing.T) {
	t.Parallel()
	n := NewGain("gain", frame.ChannelsSingle, 20, true) // 20 dB -> factor 10
	f := frame.NewSingle([]float32{0.5, -0.5}, 48000, 1, 0)

	out, err := n.Process(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.0, -1.0}, out.Single.Samples) // clamped from ±5.0
}

func TestGainHotReloadChangesValue(t *testing.T) {
	t.Parallel()
	n := NewGain("gain", frame.ChannelsSingle, 0, false)
	res, err := n.UpdateParameters(map[string]any{"value": 6.0})
	require.NoError(t, err)
	assert.Equal(t, pagraph.ReloadApplied, res.Outcome)
	assert.Greater(t, n.factor, 1.0)
}

func TestFilterOrderChangeRequiresFlushButStillApplied(t *testing.T) {
	t.Parallel()
	n, err := NewFilter("f", frame.ChannelsSingle, filterbank.Spec{
		Response: filterbank.LowPass, Order: 2, CenterHz: 1000, SampleRate: 48000,
	})
	require.NoError(t, err)

	res, err := n.UpdateParameters(map[string]any{"order": 4})
	require.NoError(t, err)
	assert.Equal(t, pagraph.ReloadApplied, res.Outcome)
	assert.Equal(t, 4, n.a.Spec().Order)
}

func TestFilterCenterOnlyChangePreservesSectionCount(t *testing.T) {
	t.Parallel()
	n, err := NewFilter("f", frame.ChannelsSingle, filterbank.Spec{
		Response: filterbank.LowPass, Order: 2, CenterHz: 1000, SampleRate: 48000,
	})
	require.NoError(t, err)
	before := n.a.NumSections()

	_, err = n.UpdateParameters(map[string]any{"cutoff_frequency": 1200.0})
	require.NoError(t, err)
	assert.Equal(t, before, n.a.NumSections())
}

func TestStreamingPublishesToBroadcaster(t *testing.T) {
	t.Parallel()
	bc := broadcaster.New(4)
	n := NewStreaming("stream1", frame.ChannelsSingle, bc)
	sub := bc.Subscribe("stream1")

	f := frame.NewSingle([]float32{1}, 48000, 1, 0)
	out, err := n.Process(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, f.Single.Samples, out.Single.Samples)

	_, ok := sub.Recv()
	assert.True(t, ok)
}

func TestStreamingIdChangeRequiresRestart(t *testing.T) {
	t.Parallel()
	bc := broadcaster.New(4)
	n := NewStreaming("stream1", frame.ChannelsSingle, bc)
	res, err := n.UpdateParameters(map[string]any{"id": "stream2"})
	require.NoError(t, err)
	assert.Equal(t, pagraph.ReloadRequiresRestart, res.Outcome)
}

func TestPhotoacousticOutputFindsDominantFrequency(t *testing.T) {
	t.Parallel()
	n := NewPhotoacousticOutput("pa", PolynomialCoefficients{1, 0, 0, 0, 0})

	const sampleRate = 48000
	const n0 = 1024
	samples := make([]float32, n0)
	freq := 1000.0
	for i := range samples {
		samples[i] = float32(sampleOf(freq, sampleRate, i))
	}
	f := frame.NewSingle(samples, sampleRate, 1, 0)

	_, err := n.Process(context.Background(), f)
	require.NoError(t, err)

	peaks := n.RecentPeaks()
	require.Len(t, peaks, 1)
	assert.InDelta(t, freq, peaks[0].FrequencyHz, float64(sampleRate)/float64(n0)*2)
}

func sampleOf(freqHz float64, sampleRate, i int) float64 {
	return math.Sin(2 * math.Pi * freqHz * float64(i) / float64(sampleRate))
}
