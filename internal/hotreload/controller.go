// Package hotreload implements the configuration reload controller: it
// holds the single shared graph configuration under a reader-preferred
// lock, diffs an incoming configuration against the running one, and
// applies each changed node's parameters live via UpdateParameters. It
// never restarts anything itself — it only reports which sections, if
// any, require a full component restart. Apply is the single writer;
// Current readers share the lock.
package hotreload

import (
	"sync"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/logging"
	"github.com/tracegas/pagraph/internal/pagraph"
	"github.com/tracegas/pagraph/internal/paconf"
)

// Report summarizes the outcome of one Apply call.
type Report struct {
	// AppliedNodes lists node ids whose UpdateParameters call returned
	// ReloadApplied.
	AppliedNodes []string
	// RequiresRestart maps a section name (a node id, or one of the fixed
	// section names below) to the reason it cannot be applied live.
	RequiresRestart map[string]string
}

// Fixed section names for RequiresRestart, reported regardless of any
// node's own hot-reload behavior. Apply reports SectionSourceDeviceIdentity
// when the Device section appears, disappears or changes DeviceName, and
// SectionGraphStructure when the node set or connections change.
// paconf.Config has no visualization or Modbus section, so Apply never
// reports SectionVisualizationBinding or SectionModbusBinding.
const (
	SectionVisualizationBinding = "visualization_binding"
	SectionSourceDeviceIdentity = "source_device_identity"
	SectionModbusBinding        = "modbus_binding"
	SectionGraphStructure       = "graph_structure"
)

// Controller owns the live configuration and the graph it was built from.
type Controller struct {
	mu      sync.RWMutex
	current *paconf.Config
	graph   *pagraph.ProcessingGraph
}

// New builds a Controller around the configuration a graph was constructed
// from and the graph itself.
func New(initial *paconf.Config, graph *pagraph.ProcessingGraph) *Controller {
	return &Controller{current: initial, graph: graph}
}

// Current returns the configuration snapshot currently considered live.
func (c *Controller) Current() *paconf.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Apply diffs next against the currently live configuration and applies
// every changed node's parameters in place. A node that returns
// RequiresRestart leaves that node untouched and is recorded in the
// report rather than treated as an error. An actual ReloadError from a
// node (malformed parameter) stops the Apply call and returns the error:
// nodes already updated earlier in the same call keep their new
// parameters, and Current still returns the previous configuration.
func (c *Controller) Apply(next *paconf.Config) (Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := Report{RequiresRestart: map[string]string{}}

	if fixedSectionChanged(c.current, next) {
		restartDiffFixedSections(c.current, next, &report)
	}

	if graphStructureChanged(c.current.Graph, next.Graph) {
		report.RequiresRestart[SectionGraphStructure] = "node set or connection topology changed"
		c.current = next
		return report, nil
	}

	nextByID := make(map[string]paconf.NodeConfig, len(next.Graph.Nodes))
	for _, nc := range next.Graph.Nodes {
		nextByID[nc.ID] = nc
	}
	curByID := make(map[string]paconf.NodeConfig, len(c.current.Graph.Nodes))
	for _, nc := range c.current.Graph.Nodes {
		curByID[nc.ID] = nc
	}

	for id, nextNode := range nextByID {
		curNode, ok := curByID[id]
		if !ok {
			continue // new node: already covered by graphStructureChanged above
		}
		changed := diffParams(curNode.Parameters, nextNode.Parameters)
		if len(changed) == 0 {
			continue
		}

		node := c.graph.Node(pagraph.NodeId(id))
		if node == nil {
			continue
		}
		result, err := node.UpdateParameters(changed)
		if err != nil {
			return Report{}, errors.New(err).Component("hotreload").Category(errors.CategoryReload).
				Context("node_id", id).Build()
		}
		switch result.Outcome {
		case pagraph.ReloadApplied:
			report.AppliedNodes = append(report.AppliedNodes, id)
		case pagraph.ReloadRequiresRestart:
			report.RequiresRestart[id] = result.Reason
		}
	}

	c.current = next
	logging.ForComponent("hotreload").Info("configuration reload applied",
		"applied_nodes", len(report.AppliedNodes), "requires_restart", len(report.RequiresRestart))
	return report, nil
}

// diffParams returns the key/value pairs in next that are absent from, or
// different from, cur. Node constructors only see the fields that
// actually changed, so a node's UpdateParameters never has to reason about
// fields the caller didn't intend to touch.
func diffParams(cur, next map[string]any) map[string]any {
	changed := make(map[string]any)
	for k, v := range next {
		if cv, ok := cur[k]; !ok || !equalParam(cv, v) {
			changed[k] = v
		}
	}
	return changed
}

func equalParam(a, b any) bool {
	af, aok := toComparableFloat(a)
	bf, bok := toComparableFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toComparableFloat(v any) (float64, bool) {
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

func graphStructureChanged(a, b paconf.GraphConfig) bool {
	if len(a.Nodes) != len(b.Nodes) || len(a.Connections) != len(b.Connections) {
		return true
	}
	if a.Input != b.Input || len(a.Output) != len(b.Output) {
		return true
	}
	aTypes := make(map[string]paconf.NodeType, len(a.Nodes))
	for _, n := range a.Nodes {
		aTypes[n.ID] = n.NodeType
	}
	for _, n := range b.Nodes {
		t, ok := aTypes[n.ID]
		if !ok || t != n.NodeType {
			return true
		}
	}
	for i := range a.Connections {
		if a.Connections[i] != b.Connections[i] {
			return true
		}
	}
	return false
}

func fixedSectionChanged(cur, next *paconf.Config) bool {
	return deviceIdentityChanged(cur.Device, next.Device)
}

func deviceIdentityChanged(cur, next *paconf.DeviceConfig) bool {
	if (cur == nil) != (next == nil) {
		return true
	}
	if cur == nil {
		return false
	}
	return cur.DeviceName != next.DeviceName
}

func restartDiffFixedSections(cur, next *paconf.Config, report *Report) {
	if deviceIdentityChanged(cur.Device, next.Device) {
		report.RequiresRestart[SectionSourceDeviceIdentity] = "source device identity cannot change without a restart"
	}
}
