// Package driver implements the single-threaded cooperative scheduling
// loop: one producer goroutine pulls frames from a
// Source and hands them to a bounded channel (capacity 1-4, applying
// back-pressure to the source); a single driver goroutine pulls from that
// channel and runs exactly one ProcessingGraph.Execute pass per frame. The
// Graph is owned exclusively by this loop — nothing else may mutate it
// while the driver runs.
package driver

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/tracegas/pagraph/internal/broadcaster"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/logging"
	"github.com/tracegas/pagraph/internal/metrics"
	"github.com/tracegas/pagraph/internal/pagraph"
	"github.com/tracegas/pagraph/internal/recorder"
	"github.com/tracegas/pagraph/internal/sources"
)

// Config controls the driver's source-to-graph queue depth and optional
// observability hooks.
type Config struct {
	QueueDepth  int // 1-4; defaults to 4
	Metrics     *metrics.GraphMetrics
	RecordNodes map[string]RecorderStatter

	// Broadcaster and StreamingNodeIDs let the driver poll per-tap
	// subscriber counts into the metrics sink. Both optional.
	Broadcaster      *broadcaster.Broadcaster
	StreamingNodeIDs []string
}

// RecorderStatter is the subset of *nodes.RecordNode the driver needs to
// poll for metrics without importing the nodes package (which would be a
// dependency cycle: nodes -> pagraph, driver -> pagraph, and driver should
// not need to know about concrete node kinds beyond this one read). It is
// exported so callers assembling a graph from config (cmd/, internal/cliapp)
// can build the RecordNodes map without reaching into package nodes.
type RecorderStatter interface {
	RecorderStatistics() recorder.Stats
}

// Driver runs one Source-to-Graph pipeline until its context is canceled
// or the source is exhausted.
type Driver struct {
	graph  *pagraph.ProcessingGraph
	src    sources.Source
	cfg    Config

	lastNodeStats map[pagraph.NodeId]pagraph.NodeStatistics
}

// New builds a Driver around an already-validated graph and a source.
func New(graph *pagraph.ProcessingGraph, src sources.Source, cfg Config) *Driver {
	if cfg.QueueDepth <= 0 || cfg.QueueDepth > 4 {
		cfg.QueueDepth = 4
	}
	return &Driver{
		graph:         graph,
		src:           src,
		cfg:           cfg,
		lastNodeStats: make(map[pagraph.NodeId]pagraph.NodeStatistics),
	}
}

// Run starts the producer goroutine and drives frames through the graph
// until ctx is canceled or the source returns ErrExhausted. On return it
// has drained the in-flight frame, so it is safe for the caller to flush
// recorders and disconnect broadcaster subscribers immediately after.
func (d *Driver) Run(ctx context.Context) error {
	frames := make(chan frame.AudioFrame, d.cfg.QueueDepth)
	producerErr := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(frames)
		for {
			f, err := d.src.NextFrame(ctx)
			if err != nil {
				if stderrors.Is(err, sources.ErrExhausted) || stderrors.Is(err, context.Canceled) {
					producerErr <- nil
					return
				}
				producerErr <- err
				return
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				producerErr <- nil
				return
			}
		}
	}()

	var runErr error
loop:
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				break loop
			}
			if _, err := d.graph.Execute(ctx, f); err != nil {
				logging.ForComponent("driver").Error("graph execute failed", "error", err)
				runErr = err
				break loop
			}
			d.observe()
		case <-ctx.Done():
			break loop
		}
	}

	wg.Wait()
	select {
	case err := <-producerErr:
		if err != nil && runErr == nil {
			runErr = err
		}
	default:
	}
	return runErr
}

// observe folds the graph's latest per-node and per-pass statistics into
// the optional metrics sink, computing per-pass deltas from the
// cumulative NodeStatistics the graph exposes.
func (d *Driver) observe() {
	if d.cfg.Metrics == nil {
		return
	}
	d.cfg.Metrics.ObserveGraphPass(d.graph.Statistics())

	for _, id := range d.graph.NodeIDs() {
		n := d.graph.Node(id)
		if n == nil {
			continue
		}
		cur := n.Statistics()
		prev := d.lastNodeStats[id]
		framesDelta := cur.FramesProcessed - prev.FramesProcessed
		d.cfg.Metrics.ObserveNode(string(id), framesDelta, 0, cur.TotalProcessingNs-prev.TotalProcessingNs)
		d.lastNodeStats[id] = cur
	}

	for id, rn := range d.cfg.RecordNodes {
		d.cfg.Metrics.ObserveRecorder(id, rn.RecorderStatistics())
	}

	for _, id := range d.cfg.StreamingNodeIDs {
		d.cfg.Metrics.ObserveBroadcaster(id, d.cfg.Broadcaster)
	}
}
