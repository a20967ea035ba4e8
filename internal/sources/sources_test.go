package sources

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/recorder"
)

func TestMockSourceProducesDeterministicTone(t *testing.T) {
	t.Parallel()
	m := NewMock(48000, 8, 1000, 0.5)

	first, err := m.NextFrame(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, first.FrameNumber())
	assert.Len(t, first.Single.Samples, 8)

	second, err := m.NextFrame(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, second.FrameNumber())
	assert.NoError(t, m.Close())
}

func TestMockSourceRespectsCancellation(t *testing.T) {
	t.Parallel()
	m := NewMock(48000, 8, 1000, 0.5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.NextFrame(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func writeTestWAV(t *testing.T, dir string, numChannels int) string {
	t.Helper()
	rec, err := recorder.New(recorder.Config{
		Directory:        dir,
		BaseName:         "replay-src",
		SampleRate:       48000,
		NumChannels:      numChannels,
		MaxFileSizeBytes: 1 << 20,
	})
	require.NoError(t, err)

	samples := make([]float32, 480)
	for i := range samples {
		samples[i] = 0.25
	}
	var f frame.AudioFrame
	if numChannels == 2 {
		f = frame.NewDual(samples, samples, 48000, 0, 0)
	} else {
		f = frame.NewSingle(samples, 48000, 0, 0)
	}
	rec.WriteFrame(f)
	require.NoError(t, rec.Close())
	return rec.Statistics().CurrentFilePath
}

func TestWAVReplayRoundTripsWrittenSamples(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeTestWAV(t, dir, 1)

	src, err := OpenWAVReplay(path, 480, false)
	require.NoError(t, err)
	assert.Equal(t, 48000, src.SampleRate())

	f, err := src.NextFrame(context.Background())
	require.NoError(t, err)
	assert.Equal(t, frame.ChannelsSingle, f.Channels)
	assert.Len(t, f.Single.Samples, 480)
	for _, s := range f.Single.Samples {
		assert.InDelta(t, 0.25, s, 1e-3)
	}

	_, err = src.NextFrame(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
	require.NoError(t, src.Close())
}

func TestWAVReplayLoopsWhenConfigured(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeTestWAV(t, dir, 1)

	src, err := OpenWAVReplay(path, 480, true)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	_, err = src.NextFrame(context.Background())
	require.NoError(t, err)

	looped, err := src.NextFrame(context.Background())
	require.NoError(t, err)
	assert.Len(t, looped.Single.Samples, 480)
}

func TestWAVReplayRejectsNonexistentFile(t *testing.T) {
	t.Parallel()
	_, err := OpenWAVReplay(filepath.Join(t.TempDir(), "missing.wav"), 480, false)
	assert.Error(t, err)
}
