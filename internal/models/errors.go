package models

import "fmt"

// ConfigurationError reports an invalid geometry, property table or request.
// It is raised before any engine is invoked.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// NewConfigurationError builds a ConfigurationError with a formatted reason.
func NewConfigurationError(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// EngineErrorKind classifies transport engine failures.
type EngineErrorKind int

const (
	// EngineRejected means the engine refused the request
	EngineRejected EngineErrorKind = iota
	// EngineExhausted means the run produced no usable flux
	EngineExhausted
	// EngineUnavailable means the engine or its hardware could not be reached
	EngineUnavailable
)

func (k EngineErrorKind) String() string {
	switch k {
	case EngineRejected:
		return "rejected"
	case EngineExhausted:
		return "exhausted"
	case EngineUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// EngineError reports a failure of the external transport engine.
type EngineError struct {
	Engine string
	Kind   EngineErrorKind
	Err    error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s %s: %v", e.Engine, e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// DegenerateResultError reports a reduction whose normalizing denominator
// vanished or fell below the numerical floor.
type DegenerateResultError struct {
	Quantity    string
	Denominator float64
	Reason      string
}

func (e *DegenerateResultError) Error() string {
	return fmt.Sprintf("degenerate %s: %s (denominator %g)", e.Quantity, e.Reason, e.Denominator)
}
