package domain

import (
	"errors"
	"fmt"
)

// Common domain errors that can occur while editing or evaluating a graph.
var (
	// ErrNodeNotFound indicates that a referenced node is not in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrNodeExists indicates that a node with the same id is already present.
	ErrNodeExists = errors.New("node already exists")

	// ErrPortNotFound indicates that a referenced port does not exist on a node.
	ErrPortNotFound = errors.New("port not found")

	// ErrPortExists indicates that a port name is already used in a direction.
	ErrPortExists = errors.New("port already exists")

	// ErrInvalidPortName indicates an empty or whitespace-only port name.
	ErrInvalidPortName = errors.New("invalid port name")

	// ErrEdgeExists indicates that an identical connection is already present.
	ErrEdgeExists = errors.New("edge already exists")

	// ErrEdgeNotFound indicates that an edge is not part of the graph.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrEmptyValue indicates that a required value is empty or nil.
	ErrEmptyValue = errors.New("empty value")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// PortError represents a structural error involving a specific port.
// It provides context about which node, port, and direction were involved.
type PortError struct {
	// NodeID is the node owning (or expected to own) the port.
	NodeID string

	// Port is the port name that was looked up.
	Port string

	// Direction is the port direction that was searched.
	Direction Direction

	// Err is the underlying error that caused the operation to fail.
	Err error
}

// Error implements the error interface for PortError.
func (e *PortError) Error() string {
	return fmt.Sprintf("port error: node=%s, port=%s, direction=%s, err=%v", e.NodeID, e.Port, e.Direction, e.Err)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *PortError) Unwrap() error { return e.Err }

// NewPortError creates a new PortError with the given details.
func NewPortError(nodeID, port string, dir Direction, err error) *PortError {
	return &PortError{
		NodeID:    nodeID,
		Port:      port,
		Direction: dir,
		Err:       err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// AddErrorf adds a formatted error message to the validation error.
func (e *ValidationError) AddErrorf(format string, args ...any) {
	e.AddError(fmt.Sprintf(format, args...))
}

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// Unwrap lets callers match ValidationError against ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
