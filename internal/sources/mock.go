package sources

import (
	"context"
	"math"

	"github.com/tracegas/pagraph/internal/frame"
)

// MockSource produces a deterministic pure-sine Single-channel
// stream, useful for wiring tests that don't need the full physics
// simulator.
type MockSource struct {
	sampleRate  int
	frameSize   int
	toneHz      float64
	amplitude   float64
	sampleIndex uint64
	frameNumber uint64
}

// NewMock builds a MockSource.
func NewMock(sampleRate, frameSize int, toneHz, amplitude float64) *MockSource {
	return &MockSource{sampleRate: sampleRate, frameSize: frameSize, toneHz: toneHz, amplitude: amplitude}
}

func (m *MockSource) NextFrame(ctx context.Context) (frame.AudioFrame, error) {
	select {
	case <-ctx.Done():
		return frame.AudioFrame{}, ctx.Err()
	default:
	}

	samples := make([]float32, m.frameSize)
	for i := range samples {
		t := float64(m.sampleIndex+uint64(i)) / float64(m.sampleRate)
		samples[i] = float32(m.amplitude * math.Sin(2*math.Pi*m.toneHz*t))
	}
	fn := m.frameNumber
	m.frameNumber++
	m.sampleIndex += uint64(m.frameSize)

	tsMs := int64(float64(m.sampleIndex) / float64(m.sampleRate) * 1000)
	return frame.NewSingle(samples, m.sampleRate, fn, tsMs), nil
}

func (m *MockSource) Close() error { return nil }
