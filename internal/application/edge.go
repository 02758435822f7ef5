package application

import (
	"maps"
	"sync"

	"github.com/ahrav/go-nodeflow/infrastructure/logic"
	"github.com/ahrav/go-nodeflow/internal/domain"
)

// Edge is a directed, port-qualified connection from an output port of one
// node to an input port of another. It carries the name and configuration
// of the logic strategy that combines arriving values.
// Endpoints become nil only when a port they reference is removed; such
// detached edges are dropped from the graph's topology.
type Edge struct {
	mu sync.RWMutex

	start     *Node
	end       *Node
	startPort string
	endPort   string

	logicName   string
	logicConfig map[string]any
}

// NewEdge creates an edge between two ports and selects its default logic
// from the current graph state. Exec ports always pass through. A data
// edge into a port declared multi, or into a port that already has an
// incoming edge, accumulates into a list; anything else passes through.
// The choice is made once, here, and is not revisited when other edges
// are added or removed later.
// NewEdge does not attach the edge to its nodes; Graph.Connect does.
func NewEdge(start, end *Node, startPort, endPort string) *Edge {
	return &Edge{
		start:       start,
		end:         end,
		startPort:   startPort,
		endPort:     endPort,
		logicName:   defaultLogic(start, end, startPort, endPort),
		logicConfig: map[string]any{},
	}
}

func defaultLogic(start, end *Node, startPort, endPort string) string {
	var (
		out domain.Port
		in  domain.Port
	)
	if start != nil {
		out, _ = start.Port(startPort, domain.DirectionOutput)
	}
	if end != nil {
		in, _ = end.Port(endPort, domain.DirectionInput)
	}
	if out.IsExec() || in.IsExec() {
		return logic.NamePassthrough
	}
	if in.Multi || (end != nil && end.PortConnectionCount(endPort, domain.DirectionInput) >= 1) {
		return logic.NameList
	}
	return logic.NamePassthrough
}

// Start returns the source node, nil once detached.
func (e *Edge) Start() *Node {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.start
}

// End returns the destination node, nil once detached.
func (e *Edge) End() *Node {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.end
}

// StartPort returns the source output port name.
func (e *Edge) StartPort() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.startPort
}

// EndPort returns the destination input port name.
func (e *Edge) EndPort() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.endPort
}

// Endpoints returns both endpoints under one lock.
func (e *Edge) Endpoints() (start *Node, startPort string, end *Node, endPort string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.start, e.startPort, e.end, e.endPort
}

// IsDetached reports whether either endpoint is missing.
func (e *Edge) IsDetached() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.start == nil || e.end == nil
}

// LogicName returns the strategy name.
func (e *Edge) LogicName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logicName
}

// LogicConfig returns a copy of the strategy configuration.
func (e *Edge) LogicConfig() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return maps.Clone(e.logicConfig)
}

// SetLogic replaces the strategy name and configuration. An empty name
// keeps the current strategy.
// The destination node is marked dirty so the change takes effect on the
// next evaluation.
func (e *Edge) SetLogic(name string, config map[string]any) {
	if config == nil {
		config = map[string]any{}
	}

	e.mu.Lock()
	if name != "" {
		e.logicName = name
	}
	e.logicConfig = maps.Clone(config)
	end := e.end
	e.mu.Unlock()

	if end != nil {
		end.MarkDirty()
	}
}

// touches reports whether the edge attaches to n's port in the direction.
func (e *Edge) touches(n *Node, port string, dir domain.Direction) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if dir == domain.DirectionInput {
		return e.end == n && e.endPort == port
	}
	return e.start == n && e.startPort == port
}

func (e *Edge) renamePort(n *Node, oldName, newName string, dir domain.Direction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if dir == domain.DirectionInput && e.end == n && e.endPort == oldName {
		e.endPort = newName
	}
	if dir == domain.DirectionOutput && e.start == n && e.startPort == oldName {
		e.startPort = newName
	}
}

// detach clears the edge's endpoints after n dropped it. The other
// endpoint releases the edge too.
func (e *Edge) detach(n *Node) {
	e.mu.Lock()
	start, end := e.start, e.end
	e.start, e.end = nil, nil
	e.mu.Unlock()

	for _, other := range []*Node{start, end} {
		if other != nil && other != n {
			other.release(e)
		}
	}
}
