// Package pagraph implements the processing graph: a directed acyclic
// graph of audio nodes scheduled in topological order, one frame at a time,
// by a single cooperative driver loop. Instead of a fixed
// source/chain/sink shape it allows an arbitrary DAG of typed nodes.
package pagraph

import (
	"context"
	"time"

	"github.com/tracegas/pagraph/internal/frame"
)

// NodeId is a short, immutable, caller-assigned identifier for a node.
type NodeId string

// ReloadOutcome reports what happened to one config section during a
// hot-reload's update_parameters call.
type ReloadOutcome int

const (
	ReloadApplied ReloadOutcome = iota
	ReloadRequiresRestart
)

// ReloadResult is returned by UpdateParameters for every field group it
// considered.
type ReloadResult struct {
	Outcome ReloadOutcome
	Reason  string
}

// Node is the shared contract every processing-graph node kind implements.
// Process must never panic or let a downstream panic escape: convert any
// failure into an error so the graph can classify it as transient or fatal.
type Node interface {
	ID() NodeId
	AcceptsInputTypes() []frame.Channels
	OutputType() frame.Channels
	Process(ctx context.Context, in frame.AudioFrame) (frame.AudioFrame, error)
	UpdateParameters(params map[string]any) (ReloadResult, error)
	Statistics() NodeStatistics
}

// NodeStatistics tracks per-node performance counters. Values are
// monotonic non-decreasing (aside from Min/Max/Avg, which settle as more
// samples arrive) and survive a hot-reload of the node they belong to.
type NodeStatistics struct {
	FramesProcessed   uint64
	TotalProcessingNs int64
	MinProcessingNs   int64
	MaxProcessingNs   int64
	AvgProcessingNs   int64
}

// Record folds one pass's elapsed time into the running statistics.
func (s *NodeStatistics) Record(d time.Duration) {
	ns := d.Nanoseconds()
	if s.FramesProcessed == 0 || ns < s.MinProcessingNs {
		s.MinProcessingNs = ns
	}
	if ns > s.MaxProcessingNs {
		s.MaxProcessingNs = ns
	}
	s.FramesProcessed++
	s.TotalProcessingNs += ns
	s.AvgProcessingNs = s.TotalProcessingNs / int64(s.FramesProcessed)
}

// GraphStatistics aggregates per-pass timing across the whole graph, plus
// the graph's current shape (node and connection counts) so a single
// snapshot answers both "how fast" and "how big".
type GraphStatistics struct {
	PassesExecuted   uint64
	TotalPassNs      int64
	LastPassNs       int64
	FastestPassNs    int64
	WorstPassNs      int64
	AvgPassNs        int64
	NodeErrorsTotal  uint64
	ActiveNodes      int
	ConnectionsCount int
}

// Record folds one pass's elapsed time into the graph-level statistics.
func (s *GraphStatistics) Record(d time.Duration) {
	ns := d.Nanoseconds()
	if s.PassesExecuted == 0 || ns < s.FastestPassNs {
		s.FastestPassNs = ns
	}
	if ns > s.WorstPassNs {
		s.WorstPassNs = ns
	}
	s.PassesExecuted++
	s.LastPassNs = ns
	s.TotalPassNs += ns
	s.AvgPassNs = s.TotalPassNs / int64(s.PassesExecuted)
}
