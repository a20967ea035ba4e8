// Package metrics registers the Prometheus collectors exposed by a running
// processing graph: per-node and per-graph execution timing, broadcaster
// subscriber/drop counts, and recorder rotation/eviction/degraded-state
// counters. Its constructor takes a registry so a caller can register
// against either the global registry or an isolated one in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tracegas/pagraph/internal/broadcaster"
	"github.com/tracegas/pagraph/internal/pagraph"
	"github.com/tracegas/pagraph/internal/recorder"
)

const namespace = "pagraph"

// GraphMetrics holds every collector this package registers. Nil-safe:
// every Record/Observe method on a nil *GraphMetrics is a no-op, so callers
// don't need to special-case "metrics disabled".
type GraphMetrics struct {
	nodeFramesProcessed  *prometheus.CounterVec
	nodeProcessingNs     *prometheus.HistogramVec
	nodeErrorsTotal      *prometheus.CounterVec
	graphPassesTotal     prometheus.Counter
	graphPassNs          prometheus.Histogram
	broadcasterSubs      *prometheus.GaugeVec
	broadcasterDropped   *prometheus.CounterVec
	recorderBytesWritten *prometheus.GaugeVec
	recorderFilesRotated *prometheus.GaugeVec
	recorderFilesEvicted *prometheus.GaugeVec
	recorderDegraded     *prometheus.GaugeVec
}

// New constructs and registers every collector against reg. A
// construction failure (duplicate registration) is
// returned rather than panicking, since a caller may legitimately build
// more than one GraphMetrics against more than one registry in tests.
func New(reg prometheus.Registerer) (*GraphMetrics, error) {
	m := &GraphMetrics{
		nodeFramesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "node", Name: "frames_processed_total",
			Help: "Frames successfully processed by this node.",
		}, []string{"node_id"}),
		nodeProcessingNs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "node", Name: "processing_duration_seconds",
			Help:    "Per-node Process() wall-clock duration.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"node_id"}),
		nodeErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "node", Name: "errors_total",
			Help: "Transient NodeProcessError occurrences, by node.",
		}, []string{"node_id"}),
		graphPassesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "graph", Name: "passes_total",
			Help: "Full Execute() passes completed.",
		}),
		graphPassNs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "graph", Name: "pass_duration_seconds",
			Help:    "Whole-graph Execute() wall-clock duration.",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 12),
		}),
		broadcasterSubs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "broadcaster", Name: "subscribers",
			Help: "Live subscriber count, by streaming node id.",
		}, []string{"node_id"}),
		broadcasterDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "broadcaster", Name: "dropped_frames_total",
			Help: "Frames dropped to overwrite-oldest across all subscribers of a node.",
		}, []string{"node_id"}),
		recorderBytesWritten: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "recorder", Name: "bytes_written_total",
			Help: "Cumulative PCM bytes written, by record node id.",
		}, []string{"node_id"}),
		recorderFilesRotated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "recorder", Name: "files_rotated_total",
			Help: "Cumulative WAV file rotations, by record node id.",
		}, []string{"node_id"}),
		recorderFilesEvicted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "recorder", Name: "files_evicted_total",
			Help: "Cumulative WAV files deleted by quota eviction, by record node id.",
		}, []string{"node_id"}),
		recorderDegraded: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "recorder", Name: "writes_disabled",
			Help: "1 when a record node has disabled writes after an I/O error, else 0.",
		}, []string{"node_id"}),
	}

	collectors := []prometheus.Collector{
		m.nodeFramesProcessed, m.nodeProcessingNs, m.nodeErrorsTotal,
		m.graphPassesTotal, m.graphPassNs,
		m.broadcasterSubs, m.broadcasterDropped,
		m.recorderBytesWritten, m.recorderFilesRotated, m.recorderFilesEvicted, m.recorderDegraded,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveNode folds one node's latest statistics snapshot into the
// counters/histograms for that node id. The caller passes the counter
// deltas it observed this pass (framesDelta, errDelta) plus the last
// recorded duration, since NodeStatistics itself only tracks cumulative
// totals, not per-pass deltas.
func (m *GraphMetrics) ObserveNode(nodeID string, framesDelta, errDelta uint64, lastDurationNs int64) {
	if m == nil {
		return
	}
	if framesDelta > 0 {
		m.nodeFramesProcessed.WithLabelValues(nodeID).Add(float64(framesDelta))
		m.nodeProcessingNs.WithLabelValues(nodeID).Observe(float64(lastDurationNs) / 1e9)
	}
	if errDelta > 0 {
		m.nodeErrorsTotal.WithLabelValues(nodeID).Add(float64(errDelta))
	}
}

// ObserveGraphPass folds one Execute() pass's statistics into the
// graph-level counters.
func (m *GraphMetrics) ObserveGraphPass(stats pagraph.GraphStatistics) {
	if m == nil {
		return
	}
	m.graphPassesTotal.Inc()
	m.graphPassNs.Observe(float64(stats.LastPassNs) / 1e9)
}

// ObserveBroadcaster sets a streaming node's current subscriber count.
// Dropped frames are not read here; RecordBroadcasterDrop adds them.
func (m *GraphMetrics) ObserveBroadcaster(nodeID string, bc *broadcaster.Broadcaster) {
	if m == nil || bc == nil {
		return
	}
	m.broadcasterSubs.WithLabelValues(nodeID).Set(float64(bc.SubscriberCount(nodeID)))
}

// RecordBroadcasterDrop adds delta dropped frames for a subscriber of
// nodeID to the cumulative counter.
func (m *GraphMetrics) RecordBroadcasterDrop(nodeID string, delta uint64) {
	if m == nil || delta == 0 {
		return
	}
	m.broadcasterDropped.WithLabelValues(nodeID).Add(float64(delta))
}

// ObserveRecorder snapshots a record node's current Stats.
func (m *GraphMetrics) ObserveRecorder(nodeID string, stats recorder.Stats) {
	if m == nil {
		return
	}
	m.recorderBytesWritten.WithLabelValues(nodeID).Set(float64(stats.BytesWritten))
	m.recorderFilesRotated.WithLabelValues(nodeID).Set(float64(stats.FilesRotated))
	m.recorderFilesEvicted.WithLabelValues(nodeID).Set(float64(stats.FilesEvicted))
	degraded := 0.0
	if stats.WritesDisabled {
		degraded = 1.0
	}
	m.recorderDegraded.WithLabelValues(nodeID).Set(degraded)
}
