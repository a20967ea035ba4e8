package nodes

import (
	"context"
	"time"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/filterbank"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/pagraph"
)

// FilterNode applies a configured Butterworth band/low/high-pass filter to
// every channel of its input independently, preserving frame metadata. A
// Dual node keeps two independent filter instances (identical coefficients,
// independent delay registers) so the channels never cross-contaminate
// state.
type FilterNode struct {
	base
	a *filterbank.Filter
	b *filterbank.Filter // nil for Single
}

// NewFilter builds a Filter node. For Dual channels, two filter instances
// sharing spec are constructed, one per channel.
func NewFilter(id pagraph.NodeId, channels frame.Channels, spec filterbank.Spec) (*FilterNode, error) {
	a, err := filterbank.New(spec)
	if err != nil {
		return nil, err
	}
	n := &FilterNode{base: base{id: id, channels: channels}, a: a}
	if channels == frame.ChannelsDual {
		b, err := filterbank.New(spec)
		if err != nil {
			return nil, err
		}
		n.b = b
	}
	return n, nil
}

func (n *FilterNode) Process(_ context.Context, in frame.AudioFrame) (frame.AudioFrame, error) {
	start := time.Now()
	if in.Channels != n.channels {
		return frame.AudioFrame{}, wrongChannels("filter", n.id, in.Channels, n.channels)
	}

	switch n.channels {
	case frame.ChannelsDual:
		a := append([]float32(nil), in.Dual.ChannelA...)
		b := append([]float32(nil), in.Dual.ChannelB...)
		n.a.Apply(a)
		n.b.Apply(b)
		n.record(start)
		return frame.NewDual(a, b, in.Dual.SampleRate, in.Dual.FrameNumber, in.Dual.TimestampMs), nil
	default:
		s := append([]float32(nil), in.Single.Samples...)
		n.a.Apply(s)
		n.record(start)
		return frame.NewSingle(s, in.Single.SampleRate, in.Single.FrameNumber, in.Single.TimestampMs), nil
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	f, ok := toFloat64(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// UpdateParameters accepts the same parameter names the YAML schema uses:
// order, center_frequency/bandwidth for bandpass,
// cutoff_frequency for low/high-pass.
func (n *FilterNode) UpdateParameters(params map[string]any) (pagraph.ReloadResult, error) {
	spec := n.a.Spec()

	orderChanged := false
	if v, ok := params["order"]; ok {
		order, ok := toInt(v)
		if !ok {
			return pagraph.ReloadResult{}, errors.Newf("order must be an int").
				Component("filter").Category(errors.CategoryValidation).Build()
		}
		if order != spec.Order {
			spec.Order = order
			orderChanged = true
		}
	}
	for _, key := range []string{"center_frequency", "cutoff_frequency"} {
		if v, ok := params[key]; ok {
			f, ok := toFloat64(v)
			if !ok {
				return pagraph.ReloadResult{}, errors.Newf("%s must be numeric", key).
					Component("filter").Category(errors.CategoryValidation).Build()
			}
			spec.CenterHz = f
		}
	}
	if v, ok := params["bandwidth"]; ok {
		f, ok := toFloat64(v)
		if !ok {
			return pagraph.ReloadResult{}, errors.Newf("bandwidth must be numeric").
				Component("filter").Category(errors.CategoryValidation).Build()
		}
		spec.BandwidthHz = f
	}

	if orderChanged {
		a, err := filterbank.New(spec)
		if err != nil {
			return pagraph.ReloadResult{}, err
		}
		n.a = a
		if n.channels == frame.ChannelsDual {
			b, err := filterbank.New(spec)
			if err != nil {
				return pagraph.ReloadResult{}, err
			}
			n.b = b
		}
		return pagraph.ReloadResult{Outcome: pagraph.ReloadApplied, Reason: "order changed: filter state flushed"}, nil
	}

	if _, err := n.a.Retune(spec); err != nil {
		return pagraph.ReloadResult{}, err
	}
	if n.b != nil {
		if _, err := n.b.Retune(spec); err != nil {
			return pagraph.ReloadResult{}, err
		}
	}
	return pagraph.ReloadResult{Outcome: pagraph.ReloadApplied}, nil
}
