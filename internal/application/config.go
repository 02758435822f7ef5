// Package application provides the dataflow engine's core: nodes, edges,
// the graph store, the evaluation runtime, strategy and kind registries,
// and project and configuration loading.
package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"reflect"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-nodeflow/infrastructure/script"
	"github.com/ahrav/go-nodeflow/internal/domain"
	"github.com/ahrav/go-nodeflow/internal/ports"
)

// Verify interface compliance at compile time.
var _ ports.ConfigLoader = (*FileConfigLoader)(nil)

// DefaultWatchInterval is how often FileConfigLoader polls for changes.
const DefaultWatchInterval = time.Second

// EngineConfig holds the tunables of the evaluation engine.
// Use DefaultEngineConfig as the base and override fields from a file or
// flags; unset file fields keep their defaults.
type EngineConfig struct {
	// MaxIterations is the propagation round budget per evaluation.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations" validate:"min=1,max=1024"`
	// LogLevel selects the minimum level of emitted log records.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	// Script configures the snippet sandbox.
	Script ScriptConfig `yaml:"script" json:"script"`
	// Live configures throttled live evaluation.
	Live LiveConfig `yaml:"live" json:"live"`
}

// ScriptConfig bounds the work and output of user snippets.
type ScriptConfig struct {
	// MaxSteps caps interpreter steps per snippet run.
	MaxSteps uint64 `yaml:"max_steps" json:"max_steps" validate:"min=1000,max=1000000000"`
	// MaxDiagnosticsBytes caps each node's diagnostics buffer.
	MaxDiagnosticsBytes int `yaml:"max_diagnostics_bytes" json:"max_diagnostics_bytes" validate:"min=1024,max=67108864"`
}

// LiveConfig throttles evaluations triggered by edits.
type LiveConfig struct {
	// RatePerSecond is the sustained evaluation rate.
	RatePerSecond float64 `yaml:"rate_per_second" json:"rate_per_second" validate:"gt=0,max=1000"`
	// Burst is the number of evaluations allowed back to back.
	Burst int `yaml:"burst" json:"burst" validate:"min=1,max=100"`
}

// DefaultEngineConfig returns the configuration used when nothing is
// configured.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxIterations: DefaultMaxIterations,
		LogLevel:      "info",
		Script: ScriptConfig{
			MaxSteps:            script.DefaultMaxSteps,
			MaxDiagnosticsBytes: domain.DefaultDiagnosticsLimit,
		},
		Live: LiveConfig{
			RatePerSecond: 4,
			Burst:         1,
		},
	}
}

// ApplyDefaults resets c to DefaultEngineConfig. FileConfigLoader calls it
// before decoding so fields missing from the file keep their defaults.
func (c *EngineConfig) ApplyDefaults() { *c = DefaultEngineConfig() }

var configValidator = validator.New()

// Validate checks every field constraint.
func (c *EngineConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	return nil
}

// ScriptSandbox returns the sandbox limits for the script evaluator.
func (c EngineConfig) ScriptSandbox() script.Config {
	return script.Config{MaxSteps: c.Script.MaxSteps}
}

// NewKindRegistry creates a kind registry whose scripted kinds run in a
// sandbox with c's limits.
func (c EngineConfig) NewKindRegistry() *KindRegistry {
	return NewKindRegistry(script.NewEvaluator(c.ScriptSandbox()))
}

// Apply configures graph and runtime. Either may be nil.
func (c EngineConfig) Apply(graph *Graph, rt *Runtime) {
	if graph != nil {
		graph.SetDiagnosticsLimit(c.Script.MaxDiagnosticsBytes)
	}
	if rt != nil {
		rt.SetMaxIterations(c.MaxIterations)
	}
}

// defaulter is implemented by configuration structs with defaults.
type defaulter interface{ ApplyDefaults() }

// validatable is implemented by configuration structs with constraints.
type validatable interface{ Validate() error }

// FileConfigLoader loads YAML configuration from a file. Decoding is strict,
// so unknown keys are errors.
type FileConfigLoader struct {
	fs       afero.Fs
	path     string
	interval time.Duration
}

// NewFileConfigLoader creates a loader for path on fs. A nil fs selects the
// operating system's file system.
func NewFileConfigLoader(fsys afero.Fs, path string) *FileConfigLoader {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileConfigLoader{
		fs:       fsys,
		path:     filepath.Clean(path),
		interval: DefaultWatchInterval,
	}
}

// SetWatchInterval changes how often Watch polls. Non-positive values are
// ignored.
func (l *FileConfigLoader) SetWatchInterval(d time.Duration) {
	if d > 0 {
		l.interval = d
	}
}

// Load decodes the file into config, which must be a non-nil pointer.
// Targets implementing ApplyDefaults are defaulted first and targets
// implementing Validate are validated after decoding. A missing file
// yields a ports.ConfigError wrapping ports.ErrConfigNotFound.
func (l *FileConfigLoader) Load(ctx context.Context, config any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := l.read()
	if err != nil {
		return err
	}
	return decodeConfig(data, config)
}

func (l *FileConfigLoader) read() ([]byte, error) {
	data, err := afero.ReadFile(l.fs, l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ports.NewConfigError(l.path, ports.ErrConfigNotFound)
	}
	if err != nil {
		return nil, ports.NewConfigError(l.path, err)
	}
	return data, nil
}

func decodeConfig(data []byte, config any) error {
	rv := reflect.ValueOf(config)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("config must be a non-nil pointer, got %T", config)
	}
	if d, ok := config.(defaulter); ok {
		d.ApplyDefaults()
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	// An empty file leaves the defaults in place.
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("YAML decode failed: %w", err)
	}

	if v, ok := config.(validatable); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Watch polls the file and, whenever its contents change and decode
// cleanly, calls callback with a freshly decoded value of config's type.
// config itself is not modified after Watch returns. Decode failures are
// skipped so a half-written file does not stop the watch. The returned
// stop function ends the watch and waits for the poller to exit; it is
// safe to call more than once.
func (l *FileConfigLoader) Watch(ctx context.Context, config any, callback func(any)) (func(), error) {
	rv := reflect.ValueOf(config)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, fmt.Errorf("config must be a non-nil pointer, got %T", config)
	}
	if callback == nil {
		return nil, fmt.Errorf("callback cannot be nil")
	}
	elem := rv.Elem().Type()

	var last [sha256.Size]byte
	if data, err := l.read(); err == nil {
		last = sha256.Sum256(data)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			data, err := l.read()
			if err != nil {
				continue
			}
			sum := sha256.Sum256(data)
			if sum == last {
				continue
			}

			fresh := reflect.New(elem).Interface()
			if err := decodeConfig(data, fresh); err != nil {
				continue
			}
			last = sum
			callback(fresh)
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
	return stop, nil
}
