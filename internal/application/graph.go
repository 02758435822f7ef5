package application

import (
	"fmt"
	"sync"

	"github.com/ahrav/go-nodeflow/internal/domain"
)

// Graph owns the node set and edge set that a Runtime evaluates.
// Nodes keep their insertion order and edges keep their connection order;
// evaluation walks both in that order.
// Graph is safe for concurrent use. Structural changes wait for an
// in-flight evaluation to finish.
type Graph struct {
	// nodes maps node IDs to nodes for constant-time lookup.
	nodes map[string]*Node
	// order lists node IDs in insertion order.
	order []string
	// edges lists connections in creation order.
	edges []*Edge
	// kinds is bound to nodes added without a registry of their own.
	kinds *KindRegistry
	// diagnosticsLimit, when positive, is applied to every added node's
	// diagnostics buffer.
	diagnosticsLimit int
	// mu guards the structures above. The runtime holds the read lock for
	// the whole of an evaluation pass.
	mu sync.RWMutex
}

// NewGraph creates an empty graph. Nodes added without a kind registry are
// bound to kinds; a nil kinds selects the default registry.
func NewGraph(kinds *KindRegistry) *Graph {
	if kinds == nil {
		kinds = DefaultKindRegistry()
	}
	return &Graph{
		nodes: make(map[string]*Node),
		kinds: kinds,
	}
}

// Kinds returns the graph's kind registry.
func (g *Graph) Kinds() *KindRegistry { return g.kinds }

// SetDiagnosticsLimit bounds the diagnostics buffer of every current and
// future node to limit bytes.
func (g *Graph) SetDiagnosticsLimit(limit int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.diagnosticsLimit = limit
	for _, n := range g.nodes {
		n.Diagnostics().SetLimit(limit)
	}
}

// AddNode registers a node. The node's ID must be non-empty and unique.
func (g *Graph) AddNode(n *Node) error {
	if n == nil {
		return fmt.Errorf("cannot add nil node to graph")
	}
	if n.ID() == "" {
		return fmt.Errorf("node ID: %w", domain.ErrEmptyValue)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[n.ID()]; exists {
		return fmt.Errorf("node %s: %w", n.ID(), domain.ErrNodeExists)
	}
	n.bindKinds(g.kinds)
	if g.diagnosticsLimit > 0 {
		n.Diagnostics().SetLimit(g.diagnosticsLimit)
	}
	g.nodes[n.ID()] = n
	g.order = append(g.order, n.ID())
	return nil
}

// RemoveNode deletes a node and every edge attached to it.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, exists := g.nodes[id]
	if !exists {
		return fmt.Errorf("node %s: %w", id, domain.ErrNodeNotFound)
	}

	kept := g.edges[:0:0]
	for _, e := range g.edges {
		start, _, end, _ := e.Endpoints()
		if start == n || end == n {
			g.unlinkLocked(e)
			continue
		}
		kept = append(kept, e)
	}
	g.edges = kept

	delete(g.nodes, id)
	for i, nid := range g.order {
		if nid == id {
			g.order = append(g.order[:i:i], g.order[i+1:]...)
			break
		}
	}
	return nil
}

// Node looks up a node by ID.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodesLocked()
}

func (g *Graph) nodesLocked() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns the attached edges in creation order.
func (g *Graph) Edges() []*Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.edgesLocked()
}

// edgesLocked skips edges detached by port removal.
func (g *Graph) edgesLocked() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if !e.IsDetached() {
			out = append(out, e)
		}
	}
	return out
}

// Topology returns a consistent snapshot of nodes and attached edges.
func (g *Graph) Topology() ([]*Node, []*Edge) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodesLocked(), g.edgesLocked()
}

// Connect creates an edge from startID's output port to endID's input port
// and attaches it to both nodes. The default logic is chosen from the
// graph state before the edge is added. Connect returns an error when a
// node or port is missing or an identical edge already exists.
func (g *Graph) Connect(startID, startPort, endID, endPort string) (*Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start, ok := g.nodes[startID]
	if !ok {
		return nil, fmt.Errorf("start node %s: %w", startID, domain.ErrNodeNotFound)
	}
	end, ok := g.nodes[endID]
	if !ok {
		return nil, fmt.Errorf("end node %s: %w", endID, domain.ErrNodeNotFound)
	}
	if _, ok := start.Port(startPort, domain.DirectionOutput); !ok {
		return nil, domain.NewPortError(startID, startPort, domain.DirectionOutput, domain.ErrPortNotFound)
	}
	if _, ok := end.Port(endPort, domain.DirectionInput); !ok {
		return nil, domain.NewPortError(endID, endPort, domain.DirectionInput, domain.ErrPortNotFound)
	}

	for _, e := range g.edgesLocked() {
		s, sp, t, tp := e.Endpoints()
		if s == start && sp == startPort && t == end && tp == endPort {
			return nil, fmt.Errorf("%s.%s -> %s.%s: %w", startID, startPort, endID, endPort, domain.ErrEdgeExists)
		}
	}

	e := NewEdge(start, end, startPort, endPort)
	start.attach(e)
	end.attach(e)
	end.MarkDirty()
	g.edges = append(g.edges, e)
	return e, nil
}

// Disconnect removes an edge from the graph and from both endpoints.
func (g *Graph) Disconnect(e *Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, existing := range g.edges {
		if existing == e {
			g.edges = append(g.edges[:i:i], g.edges[i+1:]...)
			g.unlinkLocked(e)
			return nil
		}
	}
	return domain.ErrEdgeNotFound
}

// unlinkLocked releases e from its endpoints and marks the destination
// dirty so the removed contribution is recomputed away.
func (g *Graph) unlinkLocked(e *Edge) {
	start, _, end, _ := e.Endpoints()
	if start != nil {
		start.release(e)
	}
	if end != nil {
		end.release(e)
		end.MarkDirty()
	}
}

// Clear removes every node and edge.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, e := range g.edges {
		g.unlinkLocked(e)
	}
	g.nodes = make(map[string]*Node)
	g.order = nil
	g.edges = nil
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// HasCycle reports whether the edges form a feedback loop. Cycles are
// valid; evaluation of a cyclic graph ends when the iteration budget runs
// out. HasCycle uses depth-first search with node coloring.
func (g *Graph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	adjacency := make(map[string][]string, len(g.nodes))
	for _, e := range g.edgesLocked() {
		start, _, end, _ := e.Endpoints()
		adjacency[start.ID()] = append(adjacency[start.ID()], end.ID())
	}

	// White (0): unvisited, Gray (1): visiting, Black (2): visited.
	colors := make(map[string]int, len(g.nodes))

	var dfs func(id string) bool
	dfs = func(id string) bool {
		colors[id] = 1

		for _, next := range adjacency[id] {
			if colors[next] == 1 {
				return true
			}
			if colors[next] == 0 && dfs(next) {
				return true
			}
		}

		colors[id] = 2
		return false
	}

	for _, id := range g.order {
		if colors[id] == 0 && dfs(id) {
			return true
		}
	}
	return false
}
