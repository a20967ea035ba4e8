package nodes

import (
	"context"
	"time"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/pagraph"
	"github.com/tracegas/pagraph/internal/recorder"
)

// RecordNode writes every frame it sees to a rolling WAV file, forwarding
// the frame unchanged. Recorder I/O failures degrade the node (writes
// disabled, flagged via Statistics) rather than stopping the graph.
type RecordNode struct {
	base
	rec      *recorder.Recorder
	filePath string
}

// NewRecord builds a Record node around an already-constructed Recorder.
func NewRecord(id pagraph.NodeId, channels frame.Channels, rec *recorder.Recorder, filePath string) *RecordNode {
	return &RecordNode{base: base{id: id, channels: channels}, rec: rec, filePath: filePath}
}

func (n *RecordNode) Process(_ context.Context, in frame.AudioFrame) (frame.AudioFrame, error) {
	start := time.Now()
	if in.Channels != n.channels {
		return frame.AudioFrame{}, wrongChannels("record", n.id, in.Channels, n.channels)
	}
	n.rec.WriteFrame(in)
	n.record(start)
	return in, nil
}

// RecorderStatistics exposes the underlying recorder's degraded/rotation
// state for observability.
func (n *RecordNode) RecorderStatistics() recorder.Stats { return n.rec.Statistics() }

// Close flushes and closes the node's current WAV file. Callers should
// invoke this once the driver loop has stopped, so the final file isn't
// left with an unfinalized RIFF header.
func (n *RecordNode) Close() error { return n.rec.Close() }

// UpdateParameters applies max_size/total_limit/auto_delete changes live.
// A change to record_file requires a restart: the Recorder's open file
// handle is tied to the directory/basename it was constructed with.
func (n *RecordNode) UpdateParameters(params map[string]any) (pagraph.ReloadResult, error) {
	if v, ok := params["record_file"]; ok {
		if path, ok := v.(string); ok && path != n.filePath {
			return pagraph.ReloadResult{
				Outcome: pagraph.ReloadRequiresRestart,
				Reason:  "record_file path change requires restart",
			}, nil
		}
	}
	// max_size/total_limit are expressed in KB, matching the YAML schema
	// and the units internal/paconf/builder.go converts from.
	maxSizeV, hasMaxSize := params["max_size"]
	totalV, hasTotal := params["total_limit"]
	if hasMaxSize || hasTotal {
		if !hasMaxSize || !hasTotal {
			return pagraph.ReloadResult{}, errors.Newf("max_size and total_limit must be updated together").
				Component("record").Category(errors.CategoryValidation).Build()
		}
		maxSizeKB, ok := toFloat64(maxSizeV)
		if !ok {
			return pagraph.ReloadResult{}, errors.Newf("max_size must be numeric").
				Component("record").Category(errors.CategoryValidation).Build()
		}
		totalKB, ok := toFloat64(totalV)
		if !ok {
			return pagraph.ReloadResult{}, errors.Newf("total_limit must be numeric").
				Component("record").Category(errors.CategoryValidation).Build()
		}
		n.rec.UpdateLimits(int64(maxSizeKB*1024), int64(totalKB*1024))
	}
	if v, ok := params["auto_delete"]; ok {
		b, ok := v.(bool)
		if !ok {
			return pagraph.ReloadResult{}, errors.Newf("auto_delete must be a bool").
				Component("record").Category(errors.CategoryValidation).Build()
		}
		n.rec.SetAutoDelete(b)
	}
	return pagraph.ReloadResult{Outcome: pagraph.ReloadApplied}, nil
}
