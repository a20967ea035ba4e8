// Package nodes implements the concrete processing-graph node kinds: the
// Input passthrough, the Filter/Gain sample transforms, the Dual-to-Single
// combiners (Differential, ChannelSelector, ChannelMixer), the two
// terminal taps (Record, Streaming), and the analysis node
// (PhotoacousticOutput). Each kind follows the shared pagraph.Node
// contract: a fixed declared channel layout, a Process call that never
// panics, and an UpdateParameters call that applies hot-reloadable fields
// in place or reports RequiresRestart.
package nodes

import (
	"context"
	"time"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/pagraph"
)

// base holds the bookkeeping shared by every concrete node: its id, the
// channel layout it was wired with, and its running statistics.
type base struct {
	id       pagraph.NodeId
	channels frame.Channels
	stats    pagraph.NodeStatistics
}

func (b *base) ID() pagraph.NodeId                    { return b.id }
func (b *base) AcceptsInputTypes() []frame.Channels   { return []frame.Channels{b.channels} }
func (b *base) OutputType() frame.Channels            { return b.channels }
func (b *base) Statistics() pagraph.NodeStatistics    { return b.stats }

func (b *base) record(start time.Time) { b.stats.Record(time.Since(start)) }

func wrongChannels(component string, id pagraph.NodeId, got, want frame.Channels) error {
	return errors.Newf("node %q expects %s input, got %s", id, want, got).
		Component(component).Category(errors.CategoryNode).Build()
}

func dualOnlyErr(component string, id pagraph.NodeId, got frame.Channels) error {
	return errors.Newf("node %q requires Dual input, got %s", id, got).
		Component(component).Category(errors.CategoryNode).Build()
}

// InputNode is the designated graph entry: it forwards whatever the source
// produced, unchanged, after confirming it matches the declared layout.
type InputNode struct {
	base
}

// NewInput builds an Input node fixed to the given channel layout.
func NewInput(id pagraph.NodeId, channels frame.Channels) *InputNode {
	return &InputNode{base{id: id, channels: channels}}
}

func (n *InputNode) Process(_ context.Context, in frame.AudioFrame) (frame.AudioFrame, error) {
	start := time.Now()
	if in.Channels != n.channels {
		return frame.AudioFrame{}, wrongChannels("input", n.id, in.Channels, n.channels)
	}
	n.record(start)
	return in, nil
}

func (n *InputNode) UpdateParameters(map[string]any) (pagraph.ReloadResult, error) {
	return pagraph.ReloadResult{Outcome: pagraph.ReloadApplied}, nil
}
