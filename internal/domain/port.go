package domain

import "strings"

// Direction distinguishes input ports from output ports.
type Direction string

// Port directions.
const (
	// DirectionInput identifies ports that receive values from edges.
	DirectionInput Direction = "input"
	// DirectionOutput identifies ports that publish computed values.
	DirectionOutput Direction = "output"
)

// ParseDirection normalizes a direction name. Anything that is not
// recognizably an output is treated as an input, matching how editors
// pass "in"/"input" loosely.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "output", "out":
		return DirectionOutput
	default:
		return DirectionInput
	}
}

// PortKind tags whether a port carries data or execution flow.
type PortKind string

// Port kinds.
const (
	// PortData carries values.
	PortData PortKind = "data"
	// PortExec carries execution ordering; exec edges always pass through.
	PortExec PortKind = "exec"
)

// ParsePortKind returns PortExec for "exec" (any case) and PortData otherwise.
func ParsePortKind(s string) PortKind {
	if strings.EqualFold(strings.TrimSpace(s), string(PortExec)) {
		return PortExec
	}
	return PortData
}

// Default port names given to nodes created without explicit ports.
const (
	DefaultInputPort  = "input"
	DefaultOutputPort = "output"
)

// Port is a named attachment point on a node. Names are unique per
// direction on a node; ports are kept in declaration order because the
// aggregator and transform kinds depend on positional order.
type Port struct {
	// Name identifies the port within its direction.
	Name string `yaml:"name" json:"name" validate:"required,max=128"`
	// Direction is input or output.
	Direction Direction `yaml:"-" json:"-"`
	// Kind is data or exec.
	Kind PortKind `yaml:"kind,omitempty" json:"kind,omitempty" validate:"omitempty,oneof=data exec"`
	// Multi marks an input port that accepts several incoming edges whose
	// values accumulate.
	Multi bool `yaml:"multi,omitempty" json:"multi,omitempty"`
}

// IsExec reports whether the port carries execution flow.
func (p Port) IsExec() bool { return p.Kind == PortExec }
