package nodes

import (
	"context"
	"time"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/pagraph"
)

// DifferentialNode computes channel_a[i] - channel_b[i] sample-wise.
type DifferentialNode struct{ base }

// NewDifferential builds a Differential node. It always accepts Dual and
// produces Single.
func NewDifferential(id pagraph.NodeId) *DifferentialNode {
	return &DifferentialNode{base{id: id, channels: frame.ChannelsDual}}
}

func (n *DifferentialNode) OutputType() frame.Channels { return frame.ChannelsSingle }

func (n *DifferentialNode) Process(_ context.Context, in frame.AudioFrame) (frame.AudioFrame, error) {
	start := time.Now()
	if in.Channels != frame.ChannelsDual {
		return frame.AudioFrame{}, dualOnlyErr("differential", n.id, in.Channels)
	}
	out := make([]float32, len(in.Dual.ChannelA))
	for i := range out {
		out[i] = in.Dual.ChannelA[i] - in.Dual.ChannelB[i]
	}
	n.record(start)
	return frame.NewSingle(out, in.Dual.SampleRate, in.Dual.FrameNumber, in.Dual.TimestampMs), nil
}

func (n *DifferentialNode) UpdateParameters(map[string]any) (pagraph.ReloadResult, error) {
	return pagraph.ReloadResult{Outcome: pagraph.ReloadApplied}, nil
}

// TargetChannel selects which half of a Dual frame ChannelSelector emits.
type TargetChannel int

const (
	TargetChannelA TargetChannel = iota
	TargetChannelB
)

// ChannelSelectorNode emits one of the two channels of a Dual frame.
type ChannelSelectorNode struct {
	base
	target TargetChannel
}

// NewChannelSelector builds a ChannelSelector node targeting target.
func NewChannelSelector(id pagraph.NodeId, target TargetChannel) *ChannelSelectorNode {
	return &ChannelSelectorNode{base: base{id: id, channels: frame.ChannelsDual}, target: target}
}

func (n *ChannelSelectorNode) OutputType() frame.Channels { return frame.ChannelsSingle }

func (n *ChannelSelectorNode) Process(_ context.Context, in frame.AudioFrame) (frame.AudioFrame, error) {
	start := time.Now()
	if in.Channels != frame.ChannelsDual {
		return frame.AudioFrame{}, dualOnlyErr("channel_selector", n.id, in.Channels)
	}
	src := in.Dual.ChannelA
	if n.target == TargetChannelB {
		src = in.Dual.ChannelB
	}
	out := append([]float32(nil), src...)
	n.record(start)
	return frame.NewSingle(out, in.Dual.SampleRate, in.Dual.FrameNumber, in.Dual.TimestampMs), nil
}

func (n *ChannelSelectorNode) UpdateParameters(params map[string]any) (pagraph.ReloadResult, error) {
	if v, ok := params["target_channel"]; ok {
		switch t := v.(type) {
		case TargetChannel:
			n.target = t
		case string:
			switch t {
			case "ChannelA":
				n.target = TargetChannelA
			case "ChannelB":
				n.target = TargetChannelB
			default:
				return pagraph.ReloadResult{}, errors.Newf("target_channel must be ChannelA or ChannelB, got %q", t).
					Component("channel_selector").Category(errors.CategoryValidation).Build()
			}
		default:
			return pagraph.ReloadResult{}, errors.Newf("target_channel must be a string or TargetChannel").
				Component("channel_selector").Category(errors.CategoryValidation).Build()
		}
	}
	return pagraph.ReloadResult{Outcome: pagraph.ReloadApplied}, nil
}

// MixStrategy selects how ChannelMixer combines the two channels.
type MixStrategy int

const (
	MixAdd MixStrategy = iota
	MixSubtract
	MixMultiply
	MixAverage
)

// ChannelMixerNode combines a Dual frame's channels via a configured
// strategy.
type ChannelMixerNode struct {
	base
	strategy MixStrategy
}

// NewChannelMixer builds a ChannelMixer node using strategy.
func NewChannelMixer(id pagraph.NodeId, strategy MixStrategy) *ChannelMixerNode {
	return &ChannelMixerNode{base: base{id: id, channels: frame.ChannelsDual}, strategy: strategy}
}

func (n *ChannelMixerNode) OutputType() frame.Channels { return frame.ChannelsSingle }

func (n *ChannelMixerNode) Process(_ context.Context, in frame.AudioFrame) (frame.AudioFrame, error) {
	start := time.Now()
	if in.Channels != frame.ChannelsDual {
		return frame.AudioFrame{}, dualOnlyErr("channel_mixer", n.id, in.Channels)
	}
	a, b := in.Dual.ChannelA, in.Dual.ChannelB
	out := make([]float32, len(a))
	for i := range a {
		switch n.strategy {
		case MixSubtract:
			out[i] = a[i] - b[i]
		case MixMultiply:
			out[i] = a[i] * b[i]
		case MixAverage:
			out[i] = (a[i] + b[i]) / 2
		default:
			out[i] = a[i] + b[i]
		}
	}
	n.record(start)
	return frame.NewSingle(out, in.Dual.SampleRate, in.Dual.FrameNumber, in.Dual.TimestampMs), nil
}

func (n *ChannelMixerNode) UpdateParameters(params map[string]any) (pagraph.ReloadResult, error) {
	if v, ok := params["strategy"]; ok {
		switch s := v.(type) {
		case MixStrategy:
			n.strategy = s
		case string:
			switch s {
			case "add":
				n.strategy = MixAdd
			case "subtract":
				n.strategy = MixSubtract
			case "multiply":
				n.strategy = MixMultiply
			case "average":
				n.strategy = MixAverage
			default:
				return pagraph.ReloadResult{}, errors.Newf("strategy must be add, subtract, multiply or average, got %q", s).
					Component("channel_mixer").Category(errors.CategoryValidation).Build()
			}
		default:
			return pagraph.ReloadResult{}, errors.Newf("strategy must be a string or MixStrategy").
				Component("channel_mixer").Category(errors.CategoryValidation).Build()
		}
	}
	return pagraph.ReloadResult{Outcome: pagraph.ReloadApplied}, nil
}
