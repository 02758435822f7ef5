package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-nodeflow/internal/domain"
)

// Format identifies a project file encoding.
type Format string

// Supported project encodings.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the encoding from a file extension. Anything other
// than .json is treated as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// ProjectLoader parses, validates, and caches project files.
// Use ProjectLoader to turn YAML or JSON bytes into a validated
// ProjectFile, then call Build for a fresh graph.
type ProjectLoader struct {
	// validator performs struct field validation including the semver and
	// portname rules.
	validator *validator.Validate
	// logic resolves strategy names and configuration schemas for edge
	// validation.
	logic *LogicRegistry
	// cache stores validated project files indexed by the SHA256 hash of
	// their normalized encoding.
	// WARNING: Cached files are shared. Callers MUST NOT mutate them.
	cache map[string]*ProjectFile
	// cacheMu provides thread-safe access to the cache map.
	cacheMu sync.RWMutex
	// sf prevents duplicate validation when several goroutines load the
	// same project at once.
	sf singleflight.Group
}

// NewProjectLoader creates a loader that validates edge logic against
// logic. A nil logic selects the built-in strategies backed by the default
// sandbox.
// NewProjectLoader returns an error if validator registration fails.
func NewProjectLoader(logic *LogicRegistry) (*ProjectLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	if logic == nil {
		logic = NewLogicRegistry(DefaultKindRegistry().Evaluator(), nil)
	}

	return &ProjectLoader{
		validator: v,
		logic:     logic,
		cache:     make(map[string]*ProjectFile),
	}, nil
}

// Load parses and validates a project. Identical projects, compared after
// normalization, are validated once and then served from the cache.
// WARNING: The returned file may be shared with other callers and MUST
// NOT be mutated. Build it into a graph instead.
func (pl *ProjectLoader) Load(ctx context.Context, data []byte, format Format) (*ProjectFile, error) {
	file, err := pl.Parse(data, format)
	if err != nil {
		return nil, err
	}

	hash, err := calculateProjectHash(file)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate hash: %w", err)
	}

	v, err, _ := pl.sf.Do(hash, func() (any, error) {
		if cached, ok := pl.getCached(hash); ok {
			return cached, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := pl.Validate(file); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		pl.store(hash, file)
		return file, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ProjectFile), nil
}

// LoadFromReader reads all of r and loads it like Load.
func (pl *ProjectLoader) LoadFromReader(ctx context.Context, r io.Reader, format Format) (*ProjectFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	return pl.Load(ctx, data, format)
}

// Parse decodes a project without validating it. Decoding is strict:
// unknown fields are rejected so typos are not silently ignored. Decoded
// numbers in variable values and logic configuration are normalized to
// int64 or float64.
func (pl *ProjectLoader) Parse(data []byte, format Format) (*ProjectFile, error) {
	var file ProjectFile

	switch format {
	case FormatJSON:
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		decoder.UseNumber()
		if err := decoder.Decode(&file); err != nil {
			return nil, fmt.Errorf("JSON decode failed: %w", err)
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&file); err != nil {
			return nil, fmt.Errorf("YAML decode failed: %w", err)
		}
	}

	for i := range file.Nodes {
		if v := file.Nodes[i].Variable; v != nil {
			v.Value = normalizeValue(v.Value)
		}
	}
	for i := range file.Edges {
		file.Edges[i].LogicConfig = normalizeMap(file.Edges[i].LogicConfig)
	}
	return &file, nil
}

// Validate checks struct constraints and the relationships between
// nodes and edges: unique IDs, existing endpoints and ports, known logic
// names, and logic configuration matching the strategy's schema.
// Validation failures are reported as one *domain.ValidationError.
func (pl *ProjectLoader) Validate(file *ProjectFile) error {
	if err := pl.validator.Struct(file); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := pl.validateSemantics(file); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// validateSemantics performs the checks struct tags cannot express.
func (pl *ProjectLoader) validateSemantics(file *ProjectFile) error {
	verr := domain.NewValidationError("project")

	type portSet struct{ inputs, outputs map[string]bool }
	nodes := make(map[string]portSet, len(file.Nodes))

	for i, n := range file.Nodes {
		if n.ID != "" {
			if _, exists := nodes[n.ID]; exists {
				verr.AddErrorf("node %d: duplicate ID %q", i, n.ID)
				continue
			}
		}
		set := portSet{
			inputs:  portNames(n.Inputs, domain.DefaultInputPort),
			outputs: portNames(n.Outputs, domain.DefaultOutputPort),
		}
		if len(set.inputs) != countPorts(n.Inputs, domain.DefaultInputPort) {
			verr.AddErrorf("node %q: duplicate input port name", n.ID)
		}
		if len(set.outputs) != countPorts(n.Outputs, domain.DefaultOutputPort) {
			verr.AddErrorf("node %q: duplicate output port name", n.ID)
		}
		if n.ID != "" {
			nodes[n.ID] = set
		}
	}

	type edgeKey struct{ startID, startPort, endID, endPort string }
	seen := make(map[edgeKey]bool, len(file.Edges))

	for i, e := range file.Edges {
		label := fmt.Sprintf("edge %d (%s.%s -> %s.%s)", i, e.StartID, e.StartPort, e.EndID, e.EndPort)

		start, ok := nodes[e.StartID]
		if !ok {
			verr.AddErrorf("%s: start node %q does not exist", label, e.StartID)
		} else if !start.outputs[e.StartPort] {
			verr.AddErrorf("%s: node %q has no output port %q", label, e.StartID, e.StartPort)
		}

		end, ok := nodes[e.EndID]
		if !ok {
			verr.AddErrorf("%s: end node %q does not exist", label, e.EndID)
		} else if !end.inputs[e.EndPort] {
			verr.AddErrorf("%s: node %q has no input port %q", label, e.EndID, e.EndPort)
		}

		key := edgeKey{e.StartID, e.StartPort, e.EndID, e.EndPort}
		if seen[key] {
			verr.AddErrorf("%s: duplicate edge", label)
		}
		seen[key] = true

		if e.Logic != "" {
			if _, ok := pl.logic.Lookup(e.Logic); !ok {
				if suggestion := pl.logic.Suggest(e.Logic); suggestion != "" {
					verr.AddErrorf("%s: unknown logic %q (did you mean %q?)", label, e.Logic, suggestion)
				} else {
					verr.AddErrorf("%s: unknown logic %q", label, e.Logic)
				}
				continue
			}
		}
		if len(e.LogicConfig) > 0 && e.Logic != "" {
			if err := pl.validateLogicConfig(e.Logic, e.LogicConfig); err != nil {
				verr.AddErrorf("%s: %v", label, err)
			}
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// validateLogicConfig checks a logic configuration against the JSON schema
// the strategy declares. Strategies without a schema accept anything.
func (pl *ProjectLoader) validateLogicConfig(logic string, config map[string]any) error {
	schema, ok := pl.logic.Schema(logic)
	if !ok {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("logic_config schema check failed: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("invalid logic_config for %s: %s", logic, strings.Join(errs, "; "))
	}
	return nil
}

// portNames returns the declared port names, or the default port when the
// list is nil.
func portNames(ports []domain.Port, def string) map[string]bool {
	if ports == nil {
		return map[string]bool{def: true}
	}
	out := make(map[string]bool, len(ports))
	for _, p := range ports {
		out[strings.TrimSpace(p.Name)] = true
	}
	return out
}

func countPorts(ports []domain.Port, def string) int {
	if ports == nil {
		return 1
	}
	return len(ports)
}

// calculateProjectHash computes the SHA256 hash of a normalized project so
// that semantically identical files share a cache entry regardless of
// formatting or source encoding.
func calculateProjectHash(file *ProjectFile) (string, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(file); err != nil {
		return "", fmt.Errorf("failed to encode project for hashing: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(hash[:]), nil
}

func (pl *ProjectLoader) getCached(hash string) (*ProjectFile, bool) {
	pl.cacheMu.RLock()
	defer pl.cacheMu.RUnlock()

	file, ok := pl.cache[hash]
	return file, ok
}

func (pl *ProjectLoader) store(hash string, file *ProjectFile) {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache[hash] = file
}

// ClearCache removes all cached projects, forcing subsequent loads to
// validate again.
func (pl *ProjectLoader) ClearCache() {
	pl.cacheMu.Lock()
	defer pl.cacheMu.Unlock()

	pl.cache = make(map[string]*ProjectFile)
}

// CacheLen returns the number of cached projects.
func (pl *ProjectLoader) CacheLen() int {
	pl.cacheMu.RLock()
	defer pl.cacheMu.RUnlock()
	return len(pl.cache)
}

// normalizeValue converts decoded numbers into the engine's int64/float64
// representation and recurses into lists and maps.
func normalizeValue(v any) domain.Value {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case []any:
		out := make([]domain.Value, len(t))
		for i, e := range t {
			out[i] = normalizeValue(e)
		}
		return out
	case map[string]any:
		return normalizeMap(t)
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}
