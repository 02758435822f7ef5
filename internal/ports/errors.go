package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors raised by evaluators and strategies.
var (
	// ErrScriptSyntax indicates that a snippet failed to parse.
	ErrScriptSyntax = errors.New("script syntax error")

	// ErrScriptRuntime indicates that a snippet raised while running.
	ErrScriptRuntime = errors.New("script runtime error")

	// ErrScriptBudget indicates that a snippet exceeded its execution budget
	// or was cancelled.
	ErrScriptBudget = errors.New("script execution budget exceeded")

	// ErrUnsupportedValue indicates a value that cannot cross the sandbox
	// boundary.
	ErrUnsupportedValue = errors.New("unsupported value")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// EvalError represents a failed sandboxed evaluation.
// It carries the script name and the mode the evaluator was in.
type EvalError struct {
	// Script is the name of the evaluated script.
	Script string

	// Mode is the interpretation mode in effect when evaluation failed.
	Mode EvalMode

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for EvalError.
func (e *EvalError) Error() string {
	return fmt.Sprintf("eval error: script=%s, mode=%s, err=%v", e.Script, e.Mode, e.Err)
}

// Unwrap returns the underlying error.
func (e *EvalError) Unwrap() error { return e.Err }

// NewEvalError creates a new EvalError with the given details.
func NewEvalError(script string, mode EvalMode, err error) *EvalError {
	return &EvalError{
		Script: script,
		Mode:   mode,
		Err:    err,
	}
}

// StrategyError represents a failure inside a connection logic strategy.
type StrategyError struct {
	// Strategy is the registered name of the failing strategy.
	Strategy string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface for StrategyError.
func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy error: strategy=%s, err=%v", e.Strategy, e.Err)
}

// Unwrap returns the underlying error.
func (e *StrategyError) Unwrap() error { return e.Err }

// NewStrategyError creates a new StrategyError with the given details.
func NewStrategyError(strategy string, err error) *StrategyError {
	return &StrategyError{
		Strategy: strategy,
		Err:      err,
	}
}

// ConfigError represents an error from configuration operations.
type ConfigError struct {
	// ConfigKey is the configuration key that was involved in the failed
	// operation.
	ConfigKey string

	// Err is the underlying error that caused the configuration operation
	// to fail.
	Err error
}

// Error implements the error interface for ConfigError.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: key=%s, err=%v", e.ConfigKey, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a new ConfigError with the given details.
func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{
		ConfigKey: key,
		Err:       err,
	}
}
