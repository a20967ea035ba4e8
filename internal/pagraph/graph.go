package pagraph

import (
	"context"
	"sort"
	"time"

	"github.com/tracegas/pagraph/internal/errors"
	"github.com/tracegas/pagraph/internal/frame"
	"github.com/tracegas/pagraph/internal/logging"
)

// Connection is a directed edge between two nodes, added in the order the
// caller declares them so topological tie-breaks stay deterministic.
type Connection struct {
	From NodeId
	To   NodeId
}

type entry struct {
	node        Node
	insertOrder int
	outgoing    []NodeId // in connection-insertion order
}

// ProcessingGraph owns the node registry, the connection table, and the
// cached topological order used to execute one frame at a time.
type ProcessingGraph struct {
	nodes       map[NodeId]*entry
	insertSeq   int
	connections []Connection
	inputNode   NodeId
	outputNodes []NodeId

	topoOrder []NodeId
	topoValid bool

	stats GraphStatistics
}

// New creates an empty graph.
func New() *ProcessingGraph {
	return &ProcessingGraph{
		nodes: make(map[NodeId]*entry),
	}
}

// AddNode registers a node. Returns a DuplicateId error if the id is
// already present.
func (g *ProcessingGraph) AddNode(n Node) error {
	if n == nil {
		return errors.Newf("nil node").Component("pagraph").Category(errors.CategoryGraph).Build()
	}
	id := n.ID()
	if _, exists := g.nodes[id]; exists {
		return errors.Newf("duplicate node id %q", id).
			Component("pagraph").Category(errors.CategoryGraph).Context("node_id", string(id)).Build()
	}
	g.nodes[id] = &entry{node: n, insertOrder: g.insertSeq}
	g.insertSeq++
	g.invalidateTopo()
	return nil
}

// Connect adds a directed edge. Returns UnknownNode, TypeMismatch, or
// WouldCreateCycle errors as appropriate; on success the cached topological
// order is invalidated.
func (g *ProcessingGraph) Connect(from, to NodeId) error {
	fe, ok := g.nodes[from]
	if !ok {
		return errors.Newf("unknown node %q", from).Component("pagraph").Category(errors.CategoryGraph).Build()
	}
	te, ok := g.nodes[to]
	if !ok {
		return errors.Newf("unknown node %q", to).Component("pagraph").Category(errors.CategoryGraph).Build()
	}

	if !acceptsOutput(fe.node.OutputType(), te.node.AcceptsInputTypes()) {
		return errors.Newf("type mismatch connecting %q (%s) -> %q", from, fe.node.OutputType(), to).
			Component("pagraph").Category(errors.CategoryGraph).Build()
	}

	if g.wouldCreateCycle(from, to) {
		return errors.Newf("connecting %q -> %q would create a cycle", from, to).
			Component("pagraph").Category(errors.CategoryGraph).Build()
	}

	fe.outgoing = append(fe.outgoing, to)
	g.connections = append(g.connections, Connection{From: from, To: to})
	g.invalidateTopo()
	return nil
}

func acceptsOutput(out frame.Channels, accepted []frame.Channels) bool {
	for _, a := range accepted {
		if a == out {
			return true
		}
	}
	return false
}

func (g *ProcessingGraph) wouldCreateCycle(from, to NodeId) bool {
	if from == to {
		return true
	}
	visited := make(map[NodeId]bool)
	var dfs func(id NodeId) bool
	dfs = func(id NodeId) bool {
		if id == from {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		for _, next := range g.nodes[id].outgoing {
			if dfs(next) {
				return true
			}
		}
		return false
	}
	return dfs(to)
}

// SetInput designates the graph's entry node. The entry must have no
// incoming connection; Validate re-checks this since edges can be added
// after the input is designated.
func (g *ProcessingGraph) SetInput(id NodeId) error {
	if _, ok := g.nodes[id]; !ok {
		return errors.Newf("unknown node %q", id).Component("pagraph").Category(errors.CategoryGraph).Build()
	}
	if n := g.incomingCount(id); n > 0 {
		return errors.Newf("input node %q already has %d incoming connection(s)", id, n).
			Component("pagraph").Category(errors.CategoryGraph).Build()
	}
	g.inputNode = id
	return nil
}

// SetOutput designates one of the graph's terminal nodes. A terminal must
// have no outgoing connection.
func (g *ProcessingGraph) SetOutput(id NodeId) error {
	e, ok := g.nodes[id]
	if !ok {
		return errors.Newf("unknown node %q", id).Component("pagraph").Category(errors.CategoryGraph).Build()
	}
	if len(e.outgoing) > 0 {
		return errors.Newf("output node %q has %d outgoing connection(s)", id, len(e.outgoing)).
			Component("pagraph").Category(errors.CategoryGraph).Build()
	}
	for _, existing := range g.outputNodes {
		if existing == id {
			return nil
		}
	}
	g.outputNodes = append(g.outputNodes, id)
	return nil
}

func (g *ProcessingGraph) incomingCount(id NodeId) int {
	n := 0
	for _, c := range g.connections {
		if c.To == id {
			n++
		}
	}
	return n
}

func (g *ProcessingGraph) invalidateTopo() {
	g.topoValid = false
	g.topoOrder = nil
}

// Validate checks that the graph has an input, at least one output, every
// node is reachable from the input, and the cached topological order is
// acyclic. It (re)computes and caches the topological order as a
// side-effect.
func (g *ProcessingGraph) Validate() error {
	if g.inputNode == "" {
		return errors.Newf("graph has no input node set").Component("pagraph").Category(errors.CategoryGraph).Build()
	}
	if len(g.outputNodes) == 0 {
		return errors.Newf("graph has no output nodes set").Component("pagraph").Category(errors.CategoryGraph).Build()
	}

	if n := g.incomingCount(g.inputNode); n > 0 {
		return errors.Newf("input node %q has %d incoming connection(s)", g.inputNode, n).
			Component("pagraph").Category(errors.CategoryGraph).Build()
	}
	for _, out := range g.outputNodes {
		if len(g.nodes[out].outgoing) > 0 {
			return errors.Newf("output node %q has outgoing connections", out).
				Component("pagraph").Category(errors.CategoryGraph).Build()
		}
	}

	order, err := g.topologicalOrder()
	if err != nil {
		return err
	}

	reachable := g.reachableFrom(g.inputNode)
	for id := range g.nodes {
		if !reachable[id] {
			return errors.Newf("node %q is unreachable from input %q", id, g.inputNode).
				Component("pagraph").Category(errors.CategoryGraph).Build()
		}
	}

	g.topoOrder = order
	g.topoValid = true
	return nil
}

func (g *ProcessingGraph) reachableFrom(start NodeId) map[NodeId]bool {
	seen := map[NodeId]bool{start: true}
	queue := []NodeId{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.nodes[id].outgoing {
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return seen
}

// topologicalOrder runs Kahn's algorithm, breaking ties by node insertion
// order so the schedule is deterministic across runs with identical
// configuration.
func (g *ProcessingGraph) topologicalOrder() ([]NodeId, error) {
	indegree := make(map[NodeId]int, len(g.nodes))
	for id := range g.nodes {
		indegree[id] = 0
	}
	for _, c := range g.connections {
		indegree[c.To]++
	}

	ready := make([]NodeId, 0, len(g.nodes))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return g.nodes[ready[i]].insertOrder < g.nodes[ready[j]].insertOrder
	})

	order := make([]NodeId, 0, len(g.nodes))
	for len(ready) > 0 {
		// pop lowest insert-order
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		var newlyReady []NodeId
		for _, next := range g.nodes[id].outgoing {
			indegree[next]--
			if indegree[next] == 0 {
				newlyReady = append(newlyReady, next)
			}
		}
		sort.Slice(newlyReady, func(i, j int) bool {
			return g.nodes[newlyReady[i]].insertOrder < g.nodes[newlyReady[j]].insertOrder
		})
		ready = append(ready, newlyReady...)
		sort.SliceStable(ready, func(i, j int) bool {
			return g.nodes[ready[i]].insertOrder < g.nodes[ready[j]].insertOrder
		})
	}

	if len(order) != len(g.nodes) {
		return nil, errors.Newf("graph contains a cycle").Component("pagraph").Category(errors.CategoryGraph).Build()
	}
	return order, nil
}

// Execute runs one frame through every node in topological order starting
// at the input node, threading each node's output into every node it feeds,
// and returns the output each node produced this pass. A node's Process
// error is transient: it is logged, counted, and the pass is aborted for
// that node's downstream branch, but the driver keeps running. Execute
// recovers from a panic inside a node's Process and reports it the same
// way, so a single misbehaving node cannot take the graph down.
func (g *ProcessingGraph) Execute(ctx context.Context, input frame.AudioFrame) (map[NodeId]frame.AudioFrame, error) {
	if !g.topoValid {
		if err := g.Validate(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	inputs := make(map[NodeId]frame.AudioFrame, len(g.nodes))
	inputs[g.inputNode] = input
	outputs := make(map[NodeId]frame.AudioFrame, len(g.nodes))

	for _, id := range g.topoOrder {
		e := g.nodes[id]
		in, ok := inputs[id]
		if !ok {
			// no upstream output reached this node this pass (an upstream
			// branch failed); skip silently.
			continue
		}

		out, err := g.safeProcess(ctx, e.node, in)
		if err != nil {
			g.stats.NodeErrorsTotal++
			logging.ForComponent("pagraph").Warn("node process error",
				"node_id", string(id), "error", err)
			continue
		}
		outputs[id] = out
		for _, next := range e.outgoing {
			inputs[next] = out
		}
	}

	g.stats.Record(time.Since(start))
	return outputs, nil
}

func (g *ProcessingGraph) safeProcess(ctx context.Context, n Node, in frame.AudioFrame) (out frame.AudioFrame, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("node panic: %v", r).
				Component("pagraph").Category(errors.CategoryNode).Context("node_id", string(n.ID())).Build()
		}
	}()
	return n.Process(ctx, in)
}

// Statistics returns the current aggregate graph statistics.
func (g *ProcessingGraph) Statistics() GraphStatistics {
	s := g.stats
	s.ActiveNodes = len(g.nodes)
	s.ConnectionsCount = len(g.connections)
	return s
}

// Node returns a registered node by id, or nil if absent.
func (g *ProcessingGraph) Node(id NodeId) Node {
	e, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return e.node
}

// NodeIDs returns every registered node id, in insertion order.
func (g *ProcessingGraph) NodeIDs() []NodeId {
	ids := make([]NodeId, len(g.nodes))
	for id, e := range g.nodes {
		ids[e.insertOrder] = id
	}
	return ids
}
