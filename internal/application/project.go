package application

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ahrav/go-nodeflow/internal/domain"
)

// ProjectSchemaVersion is the version written by Export.
const ProjectSchemaVersion = "1.0.0"

// ProjectFile is the serializable form of a graph. It captures topology,
// content, port shape, node flags, and edge logic, which is everything
// needed to rebuild an equivalent graph. Runtime values are not saved;
// they are recomputed by the next evaluation.
type ProjectFile struct {
	// Version specifies the project schema version using semantic
	// versioning.
	Version string `yaml:"version" json:"version" validate:"required,semver"`
	// Name is an optional human-readable label for the project.
	Name string `yaml:"name,omitempty" json:"name,omitempty" validate:"max=255"`
	// Nodes lists node descriptors in graph insertion order.
	Nodes []NodeDescriptor `yaml:"nodes" json:"nodes" validate:"dive"`
	// Edges lists edge descriptors in connection order. Order matters:
	// it is the order edges propagate in and the order list logic
	// accumulates in.
	Edges []EdgeDescriptor `yaml:"edges" json:"edges" validate:"dive"`
}

// NodeDescriptor describes one node.
type NodeDescriptor struct {
	// ID identifies the node. An empty ID is replaced by a generated one
	// when the project is built; such nodes cannot be referenced by edges.
	ID string `yaml:"id" json:"id" validate:"max=128"`
	// Type is the node's kind tag, such as source, transform, or sink.
	Type string `yaml:"type" json:"type" validate:"required,max=64,kindtag"`
	// Title is the display name.
	Title string `yaml:"title,omitempty" json:"title,omitempty" validate:"max=255"`
	// X and Y are the editor coordinates.
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	// Content is the node's text: a value, an expression, or a script.
	Content string `yaml:"content" json:"content"`
	// Inputs and Outputs declare ports in order. A missing list gives the
	// node one default data port for that direction; an empty list gives
	// it none.
	Inputs  []domain.Port `yaml:"inputs" json:"inputs" validate:"dive"`
	Outputs []domain.Port `yaml:"outputs" json:"outputs" validate:"dive"`
	// Language tags the content; scripting languages make sinks scripted.
	Language string `yaml:"language,omitempty" json:"language,omitempty" validate:"max=64"`
	// Purity is pure or impure. Empty means impure.
	Purity string `yaml:"purity,omitempty" json:"purity,omitempty" validate:"omitempty,oneof=pure impure"`
	// Muted, Snapshot, ForwardOutput, and IncludeContent mirror the node
	// flags of the same names.
	Muted          bool `yaml:"muted,omitempty" json:"muted,omitempty"`
	Snapshot       bool `yaml:"snapshot,omitempty" json:"snapshot,omitempty"`
	ForwardOutput  bool `yaml:"forward_output,omitempty" json:"forward_output,omitempty"`
	IncludeContent bool `yaml:"include_content,omitempty" json:"include_content,omitempty"`
	// Variable declares the name and value of a variable node.
	Variable *VariableDescriptor `yaml:"variable,omitempty" json:"variable,omitempty"`
}

// VariableDescriptor is the declared name and value of a variable node.
type VariableDescriptor struct {
	Name  string       `yaml:"name" json:"name" validate:"required,max=128"`
	Value domain.Value `yaml:"value,omitempty" json:"value,omitempty"`
}

// EdgeDescriptor describes one edge by its port-qualified endpoints.
type EdgeDescriptor struct {
	StartID   string `yaml:"start_id" json:"start_id" validate:"required"`
	StartPort string `yaml:"start_port" json:"start_port" validate:"required"`
	EndID     string `yaml:"end_id" json:"end_id" validate:"required"`
	EndPort   string `yaml:"end_port" json:"end_port" validate:"required"`
	// Logic names the connection strategy. Empty selects the default
	// logic for the destination port.
	Logic string `yaml:"logic,omitempty" json:"logic,omitempty" validate:"max=64"`
	// LogicConfig is the strategy configuration.
	LogicConfig map[string]any `yaml:"logic_config,omitempty" json:"logic_config,omitempty"`
}

// Export captures graph as a project file. Nodes and edges keep their
// insertion order.
func Export(graph *Graph) *ProjectFile {
	nodes, edges := graph.Topology()

	file := &ProjectFile{
		Version: ProjectSchemaVersion,
		Nodes:   make([]NodeDescriptor, 0, len(nodes)),
		Edges:   make([]EdgeDescriptor, 0, len(edges)),
	}
	for _, n := range nodes {
		file.Nodes = append(file.Nodes, describeNode(n))
	}
	for _, e := range edges {
		start, startPort, end, endPort := e.Endpoints()
		if start == nil || end == nil {
			continue
		}
		desc := EdgeDescriptor{
			StartID:   start.ID(),
			StartPort: startPort,
			EndID:     end.ID(),
			EndPort:   endPort,
			Logic:     e.LogicName(),
		}
		if cfg := e.LogicConfig(); len(cfg) > 0 {
			desc.LogicConfig = cfg
		}
		file.Edges = append(file.Edges, desc)
	}
	return file
}

func describeNode(n *Node) NodeDescriptor {
	x, y := n.Position()
	desc := NodeDescriptor{
		ID:             n.ID(),
		Type:           n.Kind(),
		Title:          n.Title(),
		X:              x,
		Y:              y,
		Content:        n.Content(),
		Inputs:         portDescriptors(n.InputPorts()),
		Outputs:        portDescriptors(n.OutputPorts()),
		Language:       n.Language(),
		Muted:          n.Muted(),
		Snapshot:       n.IsSnapshot(),
		ForwardOutput:  n.ForwardOutput(),
		IncludeContent: n.IncludeContent(),
	}
	if desc.Title == desc.ID {
		desc.Title = ""
	}
	if n.Purity() == domain.Pure {
		desc.Purity = string(domain.Pure)
	}
	if domain.FamilyOf(n.Kind()) == domain.FamilyVariable {
		value, _ := n.VariableValue()
		desc.Variable = &VariableDescriptor{Name: n.VariableName(), Value: value}
	}
	return desc
}

// portDescriptors strips the direction, which the descriptor list implies,
// and never returns nil so that an empty port list survives a round trip.
func portDescriptors(ports []domain.Port) []domain.Port {
	out := make([]domain.Port, 0, len(ports))
	for _, p := range ports {
		p.Direction = ""
		out = append(out, p)
	}
	return out
}

// Build creates a new graph from the project. Nodes are bound to kinds; a
// nil kinds selects the default registry. Every call returns a fresh graph
// that the caller owns. Build does not validate the file beyond what graph
// construction enforces; use ProjectLoader for full validation.
func (f *ProjectFile) Build(kinds *KindRegistry) (*Graph, error) {
	graph := NewGraph(kinds)

	for i := range f.Nodes {
		n := f.Nodes[i].newNode()
		if err := graph.AddNode(n); err != nil {
			return nil, fmt.Errorf("failed to add node %d: %w", i, err)
		}
	}

	for i, desc := range f.Edges {
		e, err := graph.Connect(desc.StartID, desc.StartPort, desc.EndID, desc.EndPort)
		if err != nil {
			return nil, fmt.Errorf("failed to connect edge %d: %w", i, err)
		}
		if desc.Logic != "" || len(desc.LogicConfig) > 0 {
			e.SetLogic(desc.Logic, normalizeMap(desc.LogicConfig))
		}
	}
	return graph, nil
}

func (d NodeDescriptor) newNode() *Node {
	id := d.ID
	if id == "" {
		id = uuid.NewString()
	}

	n := NewNode(id, d.Type)
	if d.Title != "" {
		n.SetTitle(d.Title)
	}
	n.SetPosition(d.X, d.Y)
	n.SetContent(d.Content)
	n.SetPorts(d.Inputs, d.Outputs)
	n.SetLanguage(d.Language)
	n.SetPurity(domain.ParsePurity(d.Purity))
	n.SetMuted(d.Muted)
	n.SetSnapshot(d.Snapshot)
	n.SetForwardOutput(d.ForwardOutput)
	n.SetIncludeContent(d.IncludeContent)
	if d.Variable != nil {
		n.SetVariable(d.Variable.Name, normalizeValue(d.Variable.Value))
	}
	return n
}
