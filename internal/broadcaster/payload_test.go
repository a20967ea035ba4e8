package broadcaster

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegas/pagraph/internal/frame"
)

func TestStandardPayloadCarriesBothChannels(t *testing.T) {
	t.Parallel()
	f := frame.NewDual([]float32{1, 2}, []float32{3, 4}, 48000, 9, 100)

	p := NewStandardPayload(f)
	assert.Equal(t, []float32{1, 2}, p.ChannelA)
	assert.Equal(t, []float32{3, 4}, p.ChannelB)
	assert.Equal(t, 48000, p.SampleRate)
	assert.EqualValues(t, 9, p.FrameNumber)
	assert.InDelta(t, 2.0/48000*1000, p.DurationMs, 1e-9)
}

func TestStandardPayloadSingleChannelLeavesBEmpty(t *testing.T) {
	t.Parallel()
	f := frame.NewSingle([]float32{0.5}, 48000, 1, 0)

	p := NewStandardPayload(f)
	assert.Equal(t, []float32{0.5}, p.ChannelA)
	assert.Empty(t, p.ChannelB)
}

func TestBinaryPayloadRoundTripsSamples(t *testing.T) {
	t.Parallel()
	a := []float32{0, 0.25, -0.25, 1, -1}
	b := []float32{0.5, -0.5, 0.125, -0.125, 0}
	f := frame.NewDual(a, b, 48000, 3, 50)

	p := NewBinaryPayload(f)
	assert.Equal(t, "f32", p.ChannelsRawType)
	assert.Equal(t, 4, p.ChannelsElementSize)
	assert.Equal(t, len(a), p.ChannelsLength)

	gotA, err := DecodeF32(p.ChannelA)
	require.NoError(t, err)
	gotB, err := DecodeF32(p.ChannelB)
	require.NoError(t, err)
	assert.Equal(t, a, gotA)
	assert.Equal(t, b, gotB)
}

func TestPayloadJSONFieldNames(t *testing.T) {
	t.Parallel()
	f := frame.NewDual([]float32{1}, []float32{2}, 48000, 0, 0)

	raw, err := json.Marshal(NewStandardPayload(f))
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"channel_a", "channel_b", "sample_rate", "timestamp", "frame_number", "duration_ms"} {
		assert.Contains(t, fields, key)
	}

	raw, err = json.Marshal(NewBinaryPayload(f))
	require.NoError(t, err)
	fields = nil
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"channels_length", "channels_raw_type", "channels_element_size"} {
		assert.Contains(t, fields, key)
	}
}

func TestHeartbeatShape(t *testing.T) {
	t.Parallel()
	raw, err := json.Marshal(NewHeartbeat())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"heartbeat"}`, string(raw))
}
