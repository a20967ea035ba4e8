package sources

import (
	"context"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/frame"
)

// WAVReplaySource reads successive frames out of a WAV file, optionally
// looping, producing Single or Dual frames depending on the file's
// channel count.
type WAVReplaySource struct {
	file      *os.File
	decoder   *wav.Decoder
	frameSize int
	loop      bool

	sampleRate  int
	numChannels int
	frameNumber uint64
	sampleIndex uint64
}

// OpenWAVReplay opens path and prepares to emit frameSize-sample frames.
// If loop is true, NextFrame seeks back to the start of the audio data
// instead of returning ErrExhausted once the file is consumed.
func OpenWAVReplay(path string, frameSize int, loop bool) (*WAVReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(err).Component("sources").Category(errors.CategoryFileIO).
			Context("operation", "open_wav_replay").Context("path", path).Build()
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		_ = f.Close()
		return nil, errors.Newf("%q is not a valid WAV file", path).
			Component("sources").Category(errors.CategoryValidation).Build()
	}
	dec.ReadInfo()

	if dec.NumChans != 1 && dec.NumChans != 2 {
		_ = f.Close()
		return nil, errors.Newf("wav replay only supports 1 or 2 channels, got %d", dec.NumChans).
			Component("sources").Category(errors.CategoryValidation).Build()
	}

	return &WAVReplaySource{
		file:        f,
		decoder:     dec,
		frameSize:   frameSize,
		loop:        loop,
		sampleRate:  int(dec.SampleRate),
		numChannels: int(dec.NumChans),
	}, nil
}

func (w *WAVReplaySource) NextFrame(ctx context.Context) (frame.AudioFrame, error) {
	select {
	case <-ctx.Done():
		return frame.AudioFrame{}, ctx.Err()
	default:
	}

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: w.numChannels, SampleRate: w.sampleRate},
		Data:           make([]int, w.frameSize*w.numChannels),
		SourceBitDepth: 16,
	}
	n, err := w.decoder.PCMBuffer(buf)
	if err != nil {
		return frame.AudioFrame{}, errors.New(err).Component("sources").Category(errors.CategoryFileIO).
			Context("operation", "read_wav_samples").Build()
	}

	if n == 0 {
		if !w.loop {
			return frame.AudioFrame{}, ErrExhausted
		}
		if err := w.decoder.Rewind(); err != nil {
			return frame.AudioFrame{}, errors.New(err).Component("sources").Category(errors.CategoryFileIO).
				Context("operation", "rewind_wav").Build()
		}
		return w.NextFrame(ctx)
	}

	return w.buildFrame(buf.Data[:n]), nil
}

func (w *WAVReplaySource) buildFrame(samples []int) frame.AudioFrame {
	fn := w.frameNumber
	w.frameNumber++
	framesRead := len(samples) / w.numChannels
	w.sampleIndex += uint64(framesRead)
	tsMs := int64(float64(w.sampleIndex) / float64(w.sampleRate) * 1000)

	if w.numChannels == 2 {
		a := make([]float32, framesRead)
		b := make([]float32, framesRead)
		for i := 0; i < framesRead; i++ {
			a[i] = int16ToFloat32(samples[2*i])
			b[i] = int16ToFloat32(samples[2*i+1])
		}
		return frame.NewDual(a, b, w.sampleRate, fn, tsMs)
	}

	out := make([]float32, framesRead)
	for i := 0; i < framesRead; i++ {
		out[i] = int16ToFloat32(samples[i])
	}
	return frame.NewSingle(out, w.sampleRate, fn, tsMs)
}

func int16ToFloat32(v int) float32 {
	return float32(v) / 32768
}

func (w *WAVReplaySource) Close() error {
	return w.file.Close()
}

// SampleRate returns the WAV file's native sample rate, so a caller can
// build the processing graph at the rate the replayed audio was recorded.
func (w *WAVReplaySource) SampleRate() int { return w.sampleRate }
