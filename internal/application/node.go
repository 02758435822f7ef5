package application

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.NodeView = (*Node)(nil)

// Node is a graph vertex with ordered input and output ports, free-form
// content, and a kind that selects how its outputs are computed.
// Node is safe for concurrent use; structural edits and evaluation are
// serialized by the Graph and Runtime that own it.
type Node struct {
	// mu guards every field below.
	mu sync.RWMutex

	// id uniquely identifies the node within its graph.
	id string
	// kind is the normalized type tag used for compute dispatch.
	kind string
	// title is the display name; variable nodes fall back to it when no
	// variable name is declared.
	title string
	// x and y are the editor position, kept for project round trips.
	x, y float64

	// content is the user-edited text: a literal value, an expression, or a
	// script depending on the kind.
	content string
	// rendered is the text shown for the node when it differs from content,
	// such as the collected inputs of a scripted sink.
	rendered string
	// language tags the content; scripting markers make sinks scripted.
	language string

	// variableName and variableValue describe variable nodes.
	variableName  string
	variableValue domain.Value

	// snapshot freezes content against post-processing overwrites.
	snapshot bool
	// muted bypasses kind logic and forwards the first available input.
	muted bool
	// forwardOutput makes unscripted sinks republish their own text.
	forwardOutput bool
	// includeContent makes aggregators append their own text.
	includeContent bool
	// purity enables signature-based caching of compute results.
	purity domain.Purity

	// inputs and outputs hold ports in declaration order.
	inputs  []domain.Port
	outputs []domain.Port

	// inputValues and outputValues map port names to current values.
	inputValues  map[string]domain.Value
	outputValues map[string]domain.Value

	// dirty is set when inputs or content change and cleared by a compute.
	dirty bool
	// hasCache, cacheSig, and cacheOut record the last successful compute.
	hasCache bool
	cacheSig domain.Signature
	cacheOut map[string]domain.Value

	// edges lists incident edges in connection order.
	edges []*Edge

	// diagnostics collects script output and failures for display.
	diagnostics *domain.Diagnostics
	// kinds resolves the compute function for this node's kind.
	kinds *KindRegistry
}

// NewNode creates a node of the given kind with one default data input and
// one default data output. The node starts dirty so its first evaluation
// always computes.
func NewNode(id, kind string) *Node {
	n := &Node{
		id:           id,
		kind:         domain.NormalizeKind(kind),
		title:        id,
		purity:       domain.Impure,
		inputValues:  make(map[string]domain.Value),
		outputValues: make(map[string]domain.Value),
		dirty:        true,
		diagnostics:  domain.NewDiagnostics(0),
	}
	n.inputs = []domain.Port{defaultPort(domain.DefaultInputPort, domain.DirectionInput)}
	n.outputs = []domain.Port{defaultPort(domain.DefaultOutputPort, domain.DirectionOutput)}
	n.inputValues[domain.DefaultInputPort] = nil
	n.outputValues[domain.DefaultOutputPort] = nil
	return n
}

func defaultPort(name string, dir domain.Direction) domain.Port {
	return domain.Port{Name: name, Direction: dir, Kind: domain.PortData}
}

// PortsFromNames builds data port descriptors from bare names.
func PortsFromNames(names ...string) []domain.Port {
	out := make([]domain.Port, 0, len(names))
	for _, name := range names {
		out = append(out, domain.Port{Name: name, Kind: domain.PortData})
	}
	return out
}

// ID returns the node's identifier.
func (n *Node) ID() string { return n.id }

// Kind returns the normalized type tag.
func (n *Node) Kind() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kind
}

// SetKind changes the type tag and invalidates any cached result.
func (n *Node) SetKind(kind string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kind = domain.NormalizeKind(kind)
	n.invalidateLocked()
}

// Title returns the display name.
func (n *Node) Title() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.title
}

// SetTitle changes the display name.
func (n *Node) SetTitle(title string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.title = title
}

// Position returns the editor coordinates.
func (n *Node) Position() (x, y float64) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.x, n.y
}

// SetPosition moves the node in the editor.
func (n *Node) SetPosition(x, y float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.x, n.y = x, y
}

// Content returns the user-edited text.
func (n *Node) Content() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.content
}

// SetContent replaces the content, marking the node dirty when it changes.
func (n *Node) SetContent(content string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.content == content {
		return
	}
	n.content = content
	n.dirty = true
}

// RenderedText returns the displayed text when it was set apart from content.
func (n *Node) RenderedText() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.rendered
}

// SetRenderedText replaces the displayed text without touching content.
func (n *Node) SetRenderedText(text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rendered == text {
		return
	}
	n.rendered = text
	n.invalidateLocked()
}

// PlainText returns the rendered text, or the content when nothing has
// been rendered.
func (n *Node) PlainText() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.rendered != "" {
		return n.rendered
	}
	return n.content
}

// UpdateFromText is the content-update path used by post-processing: the
// text is trimmed and stored as content, and the rendered text is cleared
// so the two cannot disagree.
func (n *Node) UpdateFromText(text string) {
	text = strings.TrimSpace(text)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.content == text && n.rendered == "" {
		return
	}
	n.content = text
	n.rendered = ""
	n.dirty = true
}

// Language returns the content language tag.
func (n *Node) Language() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.language
}

// SetLanguage changes the content language tag.
func (n *Node) SetLanguage(language string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.language = language
	n.invalidateLocked()
}

// IsScripted reports whether the node's content runs as a snippet when the
// node is a sink.
func (n *Node) IsScripted() bool {
	return domain.IsScriptLanguage(n.Language())
}

// VariableName returns the declared variable name, falling back to the
// title.
func (n *Node) VariableName() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.variableName != "" {
		return n.variableName
	}
	return n.title
}

// VariableValue returns the variable value and whether one is set.
func (n *Node) VariableValue() (domain.Value, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return domain.CloneValue(n.variableValue), n.variableValue != nil
}

// SetVariable declares the variable name and value of a variable node. A
// nil value makes the node publish its text instead.
func (n *Node) SetVariable(name string, value domain.Value) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.variableName = name
	n.variableValue = domain.CloneValue(value)
	n.invalidateLocked()
}

// IsSnapshot reports whether content is frozen against post-processing.
func (n *Node) IsSnapshot() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.snapshot
}

// SetSnapshot freezes or unfreezes the node's content.
func (n *Node) SetSnapshot(snapshot bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snapshot = snapshot
}

// Muted reports whether the node forwards its first input unchanged.
func (n *Node) Muted() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.muted
}

// SetMuted toggles mute passthrough.
func (n *Node) SetMuted(muted bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.muted == muted {
		return
	}
	n.muted = muted
	n.invalidateLocked()
}

// ForwardOutput reports whether an unscripted sink republishes its text.
func (n *Node) ForwardOutput() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.forwardOutput
}

// SetForwardOutput toggles sink republishing.
func (n *Node) SetForwardOutput(forward bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.forwardOutput = forward
	n.invalidateLocked()
}

// IncludeContent reports whether an aggregator appends its own text.
func (n *Node) IncludeContent() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.includeContent
}

// SetIncludeContent toggles appending the aggregator's own text.
func (n *Node) SetIncludeContent(include bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.includeContent = include
	n.invalidateLocked()
}

// Purity returns the node's purity hint.
func (n *Node) Purity() domain.Purity {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.purity
}

// SetPurity changes the purity hint.
func (n *Node) SetPurity(p domain.Purity) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.purity = p
}

// IsDirty reports whether inputs or content changed since the last compute.
func (n *Node) IsDirty() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.dirty
}

// MarkDirty forces the next evaluation to recompute the node.
func (n *Node) MarkDirty() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dirty = true
}

// Diagnostics returns the node's debug text buffer.
func (n *Node) Diagnostics() *domain.Diagnostics { return n.diagnostics }

// invalidateLocked marks the node dirty and drops its cached result.
func (n *Node) invalidateLocked() {
	n.dirty = true
	n.hasCache = false
	n.cacheOut = nil
}

// InputPorts returns a copy of the input ports in declaration order.
func (n *Node) InputPorts() []domain.Port {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]domain.Port(nil), n.inputs...)
}

// OutputPorts returns a copy of the output ports in declaration order.
func (n *Node) OutputPorts() []domain.Port {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]domain.Port(nil), n.outputs...)
}

// Port looks up a port by name and direction.
func (n *Node) Port(name string, dir domain.Direction) (domain.Port, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ports := n.portsLocked(dir)
	if i := indexOfPort(*ports, name); i >= 0 {
		return (*ports)[i], true
	}
	return domain.Port{}, false
}

// AddInputPort appends an input port and initializes its value to nil.
func (n *Node) AddInputPort(name string, kind domain.PortKind) (domain.Port, error) {
	return n.addPort(domain.Port{Name: name, Kind: kind}, domain.DirectionInput)
}

// AddOutputPort appends an output port and initializes its value to nil.
func (n *Node) AddOutputPort(name string, kind domain.PortKind) (domain.Port, error) {
	return n.addPort(domain.Port{Name: name, Kind: kind}, domain.DirectionOutput)
}

func (n *Node) addPort(p domain.Port, dir domain.Direction) (domain.Port, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return domain.Port{}, domain.NewPortError(n.id, p.Name, dir, domain.ErrInvalidPortName)
	}
	p.Direction = dir
	if p.Kind == "" {
		p.Kind = domain.PortData
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ports := n.portsLocked(dir)
	if indexOfPort(*ports, p.Name) >= 0 {
		return domain.Port{}, domain.NewPortError(n.id, p.Name, dir, domain.ErrPortExists)
	}
	*ports = append(*ports, p)
	n.valuesLocked(dir)[p.Name] = nil
	return p, nil
}

// SetPorts redefines the node's ports in bulk. A nil slice preserves the
// existing ports of that direction; an empty non-nil slice removes them.
// When a nil slice meets a direction with no ports, a default data port is
// added. Values of ports that keep their name are preserved. Duplicate or
// blank names are skipped.
func (n *Node) SetPorts(inputs, outputs []domain.Port) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if inputs != nil {
		n.replacePortsLocked(inputs, domain.DirectionInput)
	} else if len(n.inputs) == 0 {
		n.replacePortsLocked([]domain.Port{defaultPort(domain.DefaultInputPort, domain.DirectionInput)}, domain.DirectionInput)
	}

	if outputs != nil {
		n.replacePortsLocked(outputs, domain.DirectionOutput)
	} else if len(n.outputs) == 0 {
		n.replacePortsLocked([]domain.Port{defaultPort(domain.DefaultOutputPort, domain.DirectionOutput)}, domain.DirectionOutput)
	}
	n.invalidateLocked()
}

func (n *Node) replacePortsLocked(defs []domain.Port, dir domain.Direction) {
	old := n.valuesLocked(dir)
	values := make(map[string]domain.Value, len(defs))
	ports := make([]domain.Port, 0, len(defs))

	for _, p := range defs {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" || indexOfPort(ports, p.Name) >= 0 {
			continue
		}
		p.Direction = dir
		if p.Kind == "" {
			p.Kind = domain.PortData
		}
		ports = append(ports, p)
		values[p.Name] = old[p.Name]
	}

	*n.portsLocked(dir) = ports
	if dir == domain.DirectionInput {
		n.inputValues = values
	} else {
		n.outputValues = values
	}
}

// RemovePort deletes a port and its value. Edges attached to the port are
// detached from both endpoints and become inert; graphs drop them from
// their topology. RemovePort reports false when the port does not exist.
func (n *Node) RemovePort(name string, dir domain.Direction) bool {
	n.mu.Lock()
	ports := n.portsLocked(dir)
	i := indexOfPort(*ports, name)
	if i < 0 {
		n.mu.Unlock()
		return false
	}
	*ports = append((*ports)[:i:i], (*ports)[i+1:]...)
	delete(n.valuesLocked(dir), name)
	n.invalidateLocked()

	var detached []*Edge
	kept := n.edges[:0:0]
	for _, e := range n.edges {
		if e.touches(n, name, dir) {
			detached = append(detached, e)
			continue
		}
		kept = append(kept, e)
	}
	n.edges = kept
	n.mu.Unlock()

	for _, e := range detached {
		e.detach(n)
	}
	return true
}

// RenamePort renames a port and updates every incident edge that
// references the old name so routing is preserved. It reports false when
// the old port is missing, the new name is blank, or the new name is
// already taken.
func (n *Node) RenamePort(oldName, newName string, dir domain.Direction) bool {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ports := n.portsLocked(dir)
	i := indexOfPort(*ports, oldName)
	if i < 0 {
		return false
	}
	if oldName == newName {
		return true
	}
	if indexOfPort(*ports, newName) >= 0 {
		return false
	}

	(*ports)[i].Name = newName
	values := n.valuesLocked(dir)
	values[newName] = values[oldName]
	delete(values, oldName)

	for _, e := range n.edges {
		e.renamePort(n, oldName, newName, dir)
	}
	n.invalidateLocked()
	return true
}

func (n *Node) portsLocked(dir domain.Direction) *[]domain.Port {
	if dir == domain.DirectionOutput {
		return &n.outputs
	}
	return &n.inputs
}

func (n *Node) valuesLocked(dir domain.Direction) map[string]domain.Value {
	if dir == domain.DirectionOutput {
		return n.outputValues
	}
	return n.inputValues
}

func indexOfPort(ports []domain.Port, name string) int {
	for i, p := range ports {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// ReceiveInputValue stores a value on an input port. The node becomes
// dirty only when the value differs from the stored one by value.
// ReceiveInputValue reports whether the stored value changed.
func (n *Node) ReceiveInputValue(port string, value domain.Value) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	prev, ok := n.inputValues[port]
	if ok && domain.Equal(prev, value) {
		return false
	}
	if !ok && value == nil {
		n.inputValues[port] = nil
		return false
	}
	n.inputValues[port] = domain.CloneValue(value)
	n.dirty = true
	return true
}

// InputValue returns the value on an input port, nil if unset.
func (n *Node) InputValue(port string) domain.Value {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return domain.CloneValue(n.inputValues[port])
}

// InputValues returns a copy of every input value.
func (n *Node) InputValues() map[string]domain.Value {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return domain.CloneValues(n.inputValues)
}

// OutputValue returns the value on an output port, nil if unset.
func (n *Node) OutputValue(port string) domain.Value {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return domain.CloneValue(n.outputValues[port])
}

// OutputValues returns a copy of every output value.
func (n *Node) OutputValues() map[string]domain.Value {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return domain.CloneValues(n.outputValues)
}

// Signature returns the inputs-signature of the node's current state.
func (n *Node) Signature() domain.Signature {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return domain.ComputeSignature(n.kind, n.content, n.inputValues)
}

// needsRecompute applies the runtime's two staleness checks: the dirty
// flag and a signature comparison against the last compute.
func (n *Node) needsRecompute() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.dirty || !n.hasCache {
		return true
	}
	return domain.ComputeSignature(n.kind, n.content, n.inputValues) != n.cacheSig
}

// ComputeOutputValues computes and stores the node's output values and
// returns a copy of them.
//
// A muted node forwards its first non-nil input, resolved to a scalar, to
// every output port. A pure node whose signature matches the last compute
// returns the cached outputs without running its kind logic. Otherwise the
// kind's compute function runs against a copy of the current outputs. On
// error the stored outputs are left unchanged.
func (n *Node) ComputeOutputValues(ctx context.Context) (map[string]domain.Value, error) {
	n.mu.Lock()
	sig := domain.ComputeSignature(n.kind, n.content, n.inputValues)

	if n.muted {
		out := n.mutedOutputsLocked()
		n.storeLocked(sig, out)
		n.mu.Unlock()
		return domain.CloneValues(out), nil
	}

	if n.purity == domain.Pure && n.hasCache && n.cacheSig == sig {
		out := domain.CloneValues(n.cacheOut)
		n.outputValues = domain.CloneValues(n.cacheOut)
		n.dirty = false
		n.mu.Unlock()
		return out, nil
	}

	base := domain.CloneValues(n.outputValues)
	kind := n.kind
	registry := n.kinds
	n.mu.Unlock()

	if registry == nil {
		registry = DefaultKindRegistry()
	}
	out, err := runCompute(ctx, registry.Lookup(kind), n, base)
	if err != nil {
		return nil, fmt.Errorf("node %s (%s): %w", n.id, kind, err)
	}
	if out == nil {
		out = base
	}

	n.mu.Lock()
	n.storeLocked(sig, out)
	n.mu.Unlock()
	return domain.CloneValues(out), nil
}

// runCompute calls fn and converts a panic into an error so one bad
// compute function cannot abort an evaluation.
func runCompute(
	ctx context.Context,
	fn ports.ComputeFunc,
	n *Node,
	base map[string]domain.Value,
) (out map[string]domain.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compute panicked: %v", r)
		}
	}()
	return fn(ctx, n, base)
}

func (n *Node) storeLocked(sig domain.Signature, out map[string]domain.Value) {
	n.outputValues = domain.CloneValues(out)
	n.cacheOut = domain.CloneValues(out)
	n.cacheSig = sig
	n.hasCache = true
	n.dirty = false
}

func (n *Node) mutedOutputsLocked() map[string]domain.Value {
	var pass domain.Value
	for _, p := range n.inputs {
		if v := domain.Collapse(n.inputValues[p.Name]); v != nil {
			pass = v
			break
		}
	}

	out := domain.CloneValues(n.outputValues)
	for _, p := range n.outputs {
		out[p.Name] = domain.CloneValue(pass)
	}
	return out
}

// resetUnfedInputs clears input ports that no edge feeds. It reports whether
// any value changed.
func (n *Node) resetUnfedInputs(fed map[string]bool) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	changed := false
	for _, p := range n.inputs {
		if fed[p.Name] {
			continue
		}
		if n.inputValues[p.Name] != nil {
			n.inputValues[p.Name] = nil
			n.dirty = true
			changed = true
		}
	}
	return changed
}

// Edges returns a copy of the node's incident edges in connection order.
func (n *Node) Edges() []*Edge {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*Edge(nil), n.edges...)
}

func (n *Node) attach(e *Edge) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.edges {
		if existing == e {
			return
		}
	}
	n.edges = append(n.edges, e)
}

func (n *Node) release(e *Edge) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, existing := range n.edges {
		if existing == e {
			n.edges = append(n.edges[:i:i], n.edges[i+1:]...)
			return
		}
	}
}

// IsPortConnected reports whether any edge is attached to the port.
func (n *Node) IsPortConnected(name string, dir domain.Direction) bool {
	return n.PortConnectionCount(name, dir) > 0
}

// PortConnectionCount returns the number of edges attached to the port.
func (n *Node) PortConnectionCount(name string, dir domain.Direction) int {
	count := 0
	for _, e := range n.Edges() {
		if e.touches(n, name, dir) {
			count++
		}
	}
	return count
}

// UpstreamVariables lists the variable nodes feeding this node, in edge
// order. A variable connected through several edges appears once.
func (n *Node) UpstreamVariables() []ports.Variable {
	var vars []ports.Variable
	seen := make(map[*Node]bool)
	for _, e := range n.Edges() {
		start, _, end, _ := e.Endpoints()
		if end != n || start == nil || seen[start] {
			continue
		}
		if domain.FamilyOf(start.Kind()) != domain.FamilyVariable {
			continue
		}
		seen[start] = true

		v, ok := start.VariableValue()
		if !ok {
			v = start.PlainText()
		}
		vars = append(vars, ports.Variable{Name: start.VariableName(), Value: v})
	}
	return vars
}

// bindKinds sets the kind registry when none is set.
func (n *Node) bindKinds(r *KindRegistry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.kinds == nil {
		n.kinds = r
	}
}

// SetKindRegistry replaces the registry used to resolve compute functions.
func (n *Node) SetKindRegistry(r *KindRegistry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = r
	n.invalidateLocked()
}
