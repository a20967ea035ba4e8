package recorder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracegas/pagraph/internal/frame"
)

func newTestRecorder(t *testing.T, maxFileSize, maxTotal int64) *Recorder {
	t.Helper()
	dir := t.TempDir()
	r, err := New(Config{
		Directory:        dir,
		BaseName:         "clip",
		SampleRate:       48000,
		NumChannels:      1,
		MaxFileSizeBytes: maxFileSize,
		MaxTotalBytes:    maxTotal,
	})
	require.NoError(t, err)
	return r
}

func TestWriteFrameCreatesWavFile(t *testing.T) {
	t.Parallel()
	r := newTestRecorder(t, 1<<20, 0)
	f := frame.NewSingle(make([]float32, 480), 48000, 1, 0)
	r.WriteFrame(f)
	require.NoError(t, r.Close())

	stats := r.Statistics()
	assert.EqualValues(t, 1, stats.FramesWritten)
	assert.FileExists(t, stats.CurrentFilePath)

	info, err := os.Stat(stats.CurrentFilePath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(480*2)) // data plus RIFF/fmt headers
}

func TestRotationProducesMultipleFiles(t *testing.T) {
	t.Parallel()
	// Small max size forces a rotation after the first frame.
	r := newTestRecorder(t, 100, 0)
	f := frame.NewSingle(make([]float32, 480), 48000, 1, 0)
	r.WriteFrame(f)
	r.WriteFrame(f)
	require.NoError(t, r.Close())

	assert.EqualValues(t, 2, r.Statistics().FilesRotated)

	entries, err := os.ReadDir(r.cfg.Directory)
	require.NoError(t, err)
	var wavCount int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".wav" {
			wavCount++
		}
	}
	assert.Equal(t, 2, wavCount)
}

func TestMismatchedChannelCountDisablesWrites(t *testing.T) {
	t.Parallel()
	r := newTestRecorder(t, 1<<20, 0)
	dual := frame.NewDual(make([]float32, 10), make([]float32, 10), 48000, 1, 0)
	r.WriteFrame(dual)

	stats := r.Statistics()
	assert.True(t, stats.WritesDisabled)
	assert.NotEmpty(t, stats.LastError)
}

func TestQuotaEvictsRotatedFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	r, err := New(Config{
		Directory:        dir,
		BaseName:         "clip",
		SampleRate:       48000,
		NumChannels:      1,
		MaxFileSizeBytes: 100,
		MaxTotalBytes:    150,
	})
	require.NoError(t, err)

	f := frame.NewSingle(make([]float32, 480), 48000, 1, 0)
	for i := 0; i < 4; i++ {
		r.WriteFrame(f)
	}
	require.NoError(t, r.Close())

	assert.Greater(t, r.Statistics().FilesEvicted, uint64(0))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var wavCount int
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".wav" {
			wavCount++
		}
	}
	assert.Less(t, wavCount, 4)
}
