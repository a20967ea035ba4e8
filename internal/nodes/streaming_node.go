package nodes

import (
	"context"
	"time"

	"github.com/tracegas/pagraph/internal/broadcaster"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/pagraph"
)

// StreamingNode publishes every frame it sees to the Broadcaster under its
// own node id, forwarding the frame unchanged. Publish never blocks, so
// this node can never stall the graph regardless of how slow its
// subscribers are.
type StreamingNode struct {
	base
	bc *broadcaster.Broadcaster
}

// NewStreaming builds a Streaming node publishing under its own id.
func NewStreaming(id pagraph.NodeId, channels frame.Channels, bc *broadcaster.Broadcaster) *StreamingNode {
	return &StreamingNode{base: base{id: id, channels: channels}, bc: bc}
}

func (n *StreamingNode) Process(_ context.Context, in frame.AudioFrame) (frame.AudioFrame, error) {
	start := time.Now()
	if in.Channels != n.channels {
		return frame.AudioFrame{}, wrongChannels("streaming", n.id, in.Channels, n.channels)
	}
	n.bc.Publish(string(n.id), in)
	n.record(start)
	return in, nil
}

// UpdateParameters: the streaming id is the Broadcaster's subscription key,
// so changing it requires a restart (live subscribers would otherwise be
// silently orphaned).
func (n *StreamingNode) UpdateParameters(params map[string]any) (pagraph.ReloadResult, error) {
	if v, ok := params["id"]; ok {
		if id, ok := v.(string); ok && pagraph.NodeId(id) != n.id {
			return pagraph.ReloadResult{
				Outcome: pagraph.ReloadRequiresRestart,
				Reason:  "streaming node id change requires restart",
			}, nil
		}
	}
	return pagraph.ReloadResult{Outcome: pagraph.ReloadApplied}, nil
}
