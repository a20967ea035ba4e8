// Package frame defines the audio frame types that flow through a
// processing graph: either a single channel of samples or a synchronized
// pair of channels from a differential microphone setup.
package frame

import "fmt"

// Channels identifies how many channels a frame or a node's output carries.
type Channels int

const (
	ChannelsSingle Channels = 1
	ChannelsDual   Channels = 2
)

func (c Channels) String() string {
	if c == ChannelsDual {
		return "dual"
	}
	return "single"
}

// AudioFrame is the tagged union that flows along every graph edge. Exactly
// one of Single or Dual is populated, selected by Channels.
type AudioFrame struct {
	Channels Channels
	Single   *SingleChannel
	Dual     *DualChannel
}

// SingleChannel carries one channel's worth of samples.
type SingleChannel struct {
	Samples      []float32
	SampleRate   int
	FrameNumber  uint64
	TimestampMs  int64
}

// DualChannel carries a synchronized pair of channels, e.g. from a
// differential microphone pair. ChannelA and ChannelB must have equal
// length.
type DualChannel struct {
	ChannelA     []float32
	ChannelB     []float32
	SampleRate   int
	FrameNumber  uint64
	TimestampMs  int64
}

// NewSingle builds a validated single-channel frame.
func NewSingle(samples []float32, sampleRate int, frameNumber uint64, timestampMs int64) AudioFrame {
	return AudioFrame{
		Channels: ChannelsSingle,
		Single: &SingleChannel{
			Samples:     samples,
			SampleRate:  sampleRate,
			FrameNumber: frameNumber,
			TimestampMs: timestampMs,
		},
	}
}

// NewDual builds a validated dual-channel frame. Panics if the channel
// lengths differ — that would violate the frame invariant at its origin,
// which is a construction bug, not a runtime condition to recover from.
func NewDual(a, b []float32, sampleRate int, frameNumber uint64, timestampMs int64) AudioFrame {
	if len(a) != len(b) {
		panic(fmt.Sprintf("frame: dual channel length mismatch: %d vs %d", len(a), len(b)))
	}
	return AudioFrame{
		Channels: ChannelsDual,
		Dual: &DualChannel{
			ChannelA:    a,
			ChannelB:    b,
			SampleRate:  sampleRate,
			FrameNumber: frameNumber,
			TimestampMs: timestampMs,
		},
	}
}

// SampleRate returns the frame's sample rate regardless of channel layout.
func (f AudioFrame) SampleRate() int {
	if f.Channels == ChannelsDual {
		return f.Dual.SampleRate
	}
	return f.Single.SampleRate
}

// FrameNumber returns the frame's sequence number regardless of layout.
func (f AudioFrame) FrameNumber() uint64 {
	if f.Channels == ChannelsDual {
		return f.Dual.FrameNumber
	}
	return f.Single.FrameNumber
}

// TimestampMs returns the frame's capture timestamp regardless of layout.
func (f AudioFrame) TimestampMs() int64 {
	if f.Channels == ChannelsDual {
		return f.Dual.TimestampMs
	}
	return f.Single.TimestampMs
}

// Len returns the number of samples per channel.
func (f AudioFrame) Len() int {
	if f.Channels == ChannelsDual {
		return len(f.Dual.ChannelA)
	}
	return len(f.Single.Samples)
}

// PeakResult is a single concentration/frequency estimate emitted by a
// PhotoacousticOutput node, kept in a bounded per-source ring by consumers.
type PeakResult struct {
	FrequencyHz      float64
	Amplitude        float64
	ConcentrationPPM *float64
	TimestampMs      int64
}
