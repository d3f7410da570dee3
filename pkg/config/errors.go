package config

import (
	"errors"
	"fmt"
)

var (
	// ErrConfigNotFound indicates the mesh configuration file was not found.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidJSON indicates JSON parsing failed.
	ErrInvalidJSON = errors.New("invalid JSON syntax")

	// ErrValidationFailed indicates configuration validation failed.
	ErrValidationFailed = errors.New("configuration validation failed")

	// ErrToolServerNotFound indicates a tool server was not found in the registry.
	ErrToolServerNotFound = errors.New("tool server not found")
)

// LoadError wraps configuration loading errors with file context.
type LoadError struct {
	File string
	Err  error
}

// Error returns the formatted error message.
func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError creates a new load error.
func NewLoadError(file string, err error) *LoadError {
	return &LoadError{File: file, Err: err}
}
