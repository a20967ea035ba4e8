package broadcaster

import (
	"encoding/base64"
	"encoding/binary"
	"math"

	"github.com/tracegas/pagraph/internal/frame"
)

// StandardPayload is the plain-JSON frame shape handed to the SSE
// transport. Single-channel frames populate ChannelA and leave ChannelB
// empty; the transport's stats endpoint tells clients which layout to
// expect.
type StandardPayload struct {
	ChannelA    []float32 `json:"channel_a"`
	ChannelB    []float32 `json:"channel_b"`
	SampleRate  int       `json:"sample_rate"`
	Timestamp   int64     `json:"timestamp"`
	FrameNumber uint64    `json:"frame_number"`
	DurationMs  float64   `json:"duration_ms"`
}

// BinaryPayload is the compact frame shape: each channel is a base64
// little-endian float32 array. The channels_* fields let a client decode
// without out-of-band knowledge, and double as the auto-detection marker
// distinguishing this shape from StandardPayload.
type BinaryPayload struct {
	ChannelA            string  `json:"channel_a"`
	ChannelB            string  `json:"channel_b"`
	ChannelsLength      int     `json:"channels_length"`
	ChannelsRawType     string  `json:"channels_raw_type"`
	ChannelsElementSize int     `json:"channels_element_size"`
	SampleRate          int     `json:"sample_rate"`
	Timestamp           int64   `json:"timestamp"`
	FrameNumber         uint64  `json:"frame_number"`
	DurationMs          float64 `json:"duration_ms"`
}

// Heartbeat is the keep-alive payload a transport emits on an idle stream.
type Heartbeat struct {
	Type string `json:"type"`
}

// NewHeartbeat returns the fixed heartbeat payload.
func NewHeartbeat() Heartbeat { return Heartbeat{Type: "heartbeat"} }

func durationMs(f frame.AudioFrame) float64 {
	sr := f.SampleRate()
	if sr <= 0 {
		return 0
	}
	return float64(f.Len()) / float64(sr) * 1000
}

// NewStandardPayload converts a frame into the plain-JSON shape.
func NewStandardPayload(f frame.AudioFrame) StandardPayload {
	p := StandardPayload{
		SampleRate:  f.SampleRate(),
		Timestamp:   f.TimestampMs(),
		FrameNumber: f.FrameNumber(),
		DurationMs:  durationMs(f),
	}
	if f.Channels == frame.ChannelsDual {
		p.ChannelA = f.Dual.ChannelA
		p.ChannelB = f.Dual.ChannelB
	} else {
		p.ChannelA = f.Single.Samples
	}
	return p
}

// NewBinaryPayload converts a frame into the compact base64 shape.
func NewBinaryPayload(f frame.AudioFrame) BinaryPayload {
	p := BinaryPayload{
		ChannelsLength:      f.Len(),
		ChannelsRawType:     "f32",
		ChannelsElementSize: 4,
		SampleRate:          f.SampleRate(),
		Timestamp:           f.TimestampMs(),
		FrameNumber:         f.FrameNumber(),
		DurationMs:          durationMs(f),
	}
	if f.Channels == frame.ChannelsDual {
		p.ChannelA = encodeF32(f.Dual.ChannelA)
		p.ChannelB = encodeF32(f.Dual.ChannelB)
	} else {
		p.ChannelA = encodeF32(f.Single.Samples)
	}
	return p
}

func encodeF32(samples []float32) string {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeF32 reverses encodeF32; exposed so in-process consumers (tests,
// local tooling) can read a BinaryPayload without reimplementing the wire
// layout.
func DecodeF32(encoded string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}
