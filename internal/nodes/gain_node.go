package nodes

import (
	"context"
	"math"
	"time"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/pagraph"
)

// GainNode scales every sample by 10^(dB/20), optionally clamping to
// ±1.0.
type GainNode struct {
	base
	valueDB float64
	clamp   bool
	factor  float64
}

// NewGain builds a Gain node for the given channel layout.
func NewGain(id pagraph.NodeId, channels frame.Channels, valueDB float64, clamp bool) *GainNode {
	return &GainNode{
		base:    base{id: id, channels: channels},
		valueDB: valueDB,
		clamp:   clamp,
		factor:  dbToFactor(valueDB),
	}
}

func dbToFactor(db float64) float64 { return math.Pow(10, db/20) }

func (n *GainNode) scale(s float32) float32 {
	out := s * float32(n.factor)
	if n.clamp {
		if out > 1.0 {
			out = 1.0
		}
		if out < -1.0 {
			out = -1.0
		}
	}
	return out
}

func (n *GainNode) Process(_ context.Context, in frame.AudioFrame) (frame.AudioFrame, error) {
	start := time.Now()
	if in.Channels != n.channels {
		return frame.AudioFrame{}, wrongChannels("gain", n.id, in.Channels, n.channels)
	}

	switch n.channels {
	case frame.ChannelsDual:
		a := make([]float32, len(in.Dual.ChannelA))
		b := make([]float32, len(in.Dual.ChannelB))
		for i := range a {
			a[i] = n.scale(in.Dual.ChannelA[i])
			b[i] = n.scale(in.Dual.ChannelB[i])
		}
		n.record(start)
		return frame.NewDual(a, b, in.Dual.SampleRate, in.Dual.FrameNumber, in.Dual.TimestampMs), nil
	default:
		out := make([]float32, len(in.Single.Samples))
		for i, s := range in.Single.Samples {
			out[i] = n.scale(s)
		}
		n.record(start)
		return frame.NewSingle(out, in.Single.SampleRate, in.Single.FrameNumber, in.Single.TimestampMs), nil
	}
}

// UpdateParameters applies a new gain value in place; it is always
// hot-reloadable.
func (n *GainNode) UpdateParameters(params map[string]any) (pagraph.ReloadResult, error) {
	if v, ok := params["value"]; ok {
		db, ok := toFloat64(v)
		if !ok {
			return pagraph.ReloadResult{}, errors.Newf("value must be numeric").
				Component("gain").Category(errors.CategoryValidation).Build()
		}
		n.valueDB = db
		n.factor = dbToFactor(db)
	}
	if v, ok := params["clamp"]; ok {
		if c, ok := v.(bool); ok {
			n.clamp = c
		}
	}
	return pagraph.ReloadResult{Outcome: pagraph.ReloadApplied}, nil
}
