package paconf

import (
	"path/filepath"

	"github.com/tracegas/pagraph/internal/broadcaster"
	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/filterbank"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/nodes"
	"github.com/tracegas/pagraph/internal/pagraph"
	"github.com/tracegas/pagraph/internal/recorder"
)

// BuildDeps carries the shared collaborators graph nodes need but the
// config file doesn't describe directly: the sample rate the upstream
// source is running at (filter and recorder geometry depend on it), the
// Broadcaster every Streaming node publishes through, and the directory
// rolling WAV files are written under.
type BuildDeps struct {
	SampleRate      int
	Broadcaster     *broadcaster.Broadcaster
	RecordDirectory string
}

// BuildResult is the constructed graph plus the node-kind-specific handles
// a driver needs for things the generic pagraph.Node contract doesn't
// expose: recorder degraded-state polling and photoacoustic peak history.
type BuildResult struct {
	Graph                *pagraph.ProcessingGraph
	RecordNodes          map[string]*nodes.RecordNode
	PhotoacousticOutputs map[string]*nodes.PhotoacousticOutputNode
	StreamingNodeIDs     []string
}

// Build constructs a ProcessingGraph from a decoded GraphConfig: every
// node is instantiated via its node_type's constructor, every connection
// is wired in declaration order, input/output are set, and the graph is
// validated before being handed back. Construction errors (unknown
// node_type, a filter with invalid geometry, a dangling connection
// endpoint) are fatal: the caller should not start the driver loop on a
// failed Build.
func Build(gc GraphConfig, deps BuildDeps) (*BuildResult, error) {
	g := pagraph.New()
	result := &BuildResult{
		Graph:                g,
		RecordNodes:          make(map[string]*nodes.RecordNode),
		PhotoacousticOutputs: make(map[string]*nodes.PhotoacousticOutputNode),
	}

	for _, nc := range gc.Nodes {
		n, err := buildNode(nc, deps, result)
		if err != nil {
			return nil, err
		}
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}

	for _, cc := range gc.Connections {
		if err := g.Connect(pagraph.NodeId(cc.From), pagraph.NodeId(cc.To)); err != nil {
			return nil, err
		}
	}

	if gc.Input != "" {
		if err := g.SetInput(pagraph.NodeId(gc.Input)); err != nil {
			return nil, err
		}
	}
	for _, out := range gc.Output {
		if err := g.SetOutput(pagraph.NodeId(out)); err != nil {
			return nil, err
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

func channelsOf(s string) frame.Channels {
	if s == "dual" {
		return frame.ChannelsDual
	}
	return frame.ChannelsSingle
}

func buildNode(nc NodeConfig, deps BuildDeps, result *BuildResult) (pagraph.Node, error) {
	id := pagraph.NodeId(nc.ID)
	p := newParams(nc.ID, nc.Parameters)

	switch nc.NodeType {
	case NodeInput:
		ch, err := p.channelsOr("dual")
		if err != nil {
			return nil, err
		}
		return nodes.NewInput(id, channelsOf(ch)), nil

	case NodeFilter:
		return buildFilterNode(id, p, deps)

	case NodeDifferential:
		return nodes.NewDifferential(id), nil

	case NodeChannelSelector:
		target, err := p.requireString("target_channel")
		if err != nil {
			return nil, err
		}
		tc, err := parseTargetChannel(nc.ID, target)
		if err != nil {
			return nil, err
		}
		return nodes.NewChannelSelector(id, tc), nil

	case NodeChannelMixer:
		strategy, err := p.requireString("strategy")
		if err != nil {
			return nil, err
		}
		ms, err := parseMixStrategy(nc.ID, strategy)
		if err != nil {
			return nil, err
		}
		return nodes.NewChannelMixer(id, ms), nil

	case NodeGain:
		value, err := p.requireFloat("value")
		if err != nil {
			return nil, err
		}
		ch, err := p.channelsOr("dual")
		if err != nil {
			return nil, err
		}
		clamp := p.boolOr("clamp", false)
		return nodes.NewGain(id, channelsOf(ch), value, clamp), nil

	case NodeRecord:
		return buildRecordNode(id, p, deps, result)

	case NodeStreaming:
		ch, err := p.channelsOr("dual")
		if err != nil {
			return nil, err
		}
		if deps.Broadcaster == nil {
			return nil, errors.Newf("node %q: streaming node requires a broadcaster", nc.ID).
				Component("paconf").Category(errors.CategoryConfiguration).Build()
		}
		result.StreamingNodeIDs = append(result.StreamingNodeIDs, nc.ID)
		return nodes.NewStreaming(id, channelsOf(ch), deps.Broadcaster), nil

	case NodePhotoacousticOutput:
		coeffs, err := p.floatSliceOr("polynomial", []float64{1, 0, 0, 0, 0})
		if err != nil {
			return nil, err
		}
		if len(coeffs) != 5 {
			return nil, errors.Newf("node %q: polynomial must have exactly 5 coefficients, got %d", nc.ID, len(coeffs)).
				Component("paconf").Category(errors.CategoryConfiguration).Build()
		}
		var poly nodes.PolynomialCoefficients
		copy(poly[:], coeffs)
		n := nodes.NewPhotoacousticOutput(id, poly)
		result.PhotoacousticOutputs[nc.ID] = n
		return n, nil

	default:
		return nil, errors.Newf("node %q: unrecognized node_type %q", nc.ID, nc.NodeType).
			Component("paconf").Category(errors.CategoryConfiguration).Build()
	}
}

func buildFilterNode(id pagraph.NodeId, p *params, deps BuildDeps) (pagraph.Node, error) {
	kind, err := p.requireString("type")
	if err != nil {
		return nil, err
	}
	order, err := p.requireInt("order")
	if err != nil {
		return nil, err
	}
	ch, err := p.channelsOr("dual")
	if err != nil {
		return nil, err
	}

	spec := filterbank.Spec{Order: order, SampleRate: deps.SampleRate}
	switch kind {
	case "bandpass":
		spec.Response = filterbank.BandPass
		center, err := p.requireFloat("center_frequency")
		if err != nil {
			return nil, err
		}
		bw, err := p.requireFloat("bandwidth")
		if err != nil {
			return nil, err
		}
		spec.CenterHz = center
		spec.BandwidthHz = bw
	case "lowpass":
		spec.Response = filterbank.LowPass
		cutoff, err := p.requireFloat("cutoff_frequency")
		if err != nil {
			return nil, err
		}
		spec.CenterHz = cutoff
	case "highpass":
		spec.Response = filterbank.HighPass
		cutoff, err := p.requireFloat("cutoff_frequency")
		if err != nil {
			return nil, err
		}
		spec.CenterHz = cutoff
	default:
		return nil, p.errf("node %q: filter type must be bandpass, lowpass or highpass, got %q", p.nodeID, kind)
	}

	return nodes.NewFilter(id, channelsOf(ch), spec)
}

func buildRecordNode(id pagraph.NodeId, p *params, deps BuildDeps, result *BuildResult) (pagraph.Node, error) {
	filePath, err := p.requireString("record_file")
	if err != nil {
		return nil, err
	}
	ch, err := p.channelsOr("dual")
	if err != nil {
		return nil, err
	}
	maxSizeKB := p.floatOr("max_size", 1024)
	totalLimitKB := p.floatOr("total_limit", 0)
	autoDelete := p.boolOr("auto_delete", false)

	dir := deps.RecordDirectory
	if dir == "" {
		dir = filepath.Dir(filePath)
	}
	baseName := baseNameWithoutExt(filepath.Base(filePath))

	numChannels := 1
	if ch == "dual" {
		numChannels = 2
	}

	rec, err := recorder.New(recorder.Config{
		Directory:        dir,
		BaseName:         baseName,
		SampleRate:       deps.SampleRate,
		NumChannels:      numChannels,
		MaxFileSizeBytes: int64(maxSizeKB * 1024),
		MaxTotalBytes:    int64(totalLimitKB * 1024),
		AutoDelete:       autoDelete,
	})
	if err != nil {
		return nil, err
	}

	n := nodes.NewRecord(id, channelsOf(ch), rec, filePath)
	result.RecordNodes[string(id)] = n
	return n, nil
}

func baseNameWithoutExt(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)]
}

func parseTargetChannel(nodeID, s string) (nodes.TargetChannel, error) {
	switch s {
	case "ChannelA":
		return nodes.TargetChannelA, nil
	case "ChannelB":
		return nodes.TargetChannelB, nil
	default:
		return 0, errors.Newf("node %q: target_channel must be ChannelA or ChannelB, got %q", nodeID, s).
			Component("paconf").Category(errors.CategoryConfiguration).Build()
	}
}

func parseMixStrategy(nodeID, s string) (nodes.MixStrategy, error) {
	switch s {
	case "add":
		return nodes.MixAdd, nil
	case "subtract":
		return nodes.MixSubtract, nil
	case "multiply":
		return nodes.MixMultiply, nil
	case "average":
		return nodes.MixAverage, nil
	default:
		return 0, errors.Newf("node %q: strategy must be add, subtract, multiply or average, got %q", nodeID, s).
			Component("paconf").Category(errors.CategoryConfiguration).Build()
	}
}
