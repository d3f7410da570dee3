// Package mesherrors defines the error taxonomy shared by the coordinator,
// adapters, and the HTTP edge. Callers classify failures with errors.Is
// against the sentinel kinds; wrapper types add per-failure context.
package mesherrors

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates a task or agent is missing required fields
	// or carries out-of-range values.
	ErrValidation = errors.New("validation failed")

	// ErrQuotaExceeded indicates a requester exceeded the hourly task cap.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrBudgetExceeded indicates projected or realized cost breaches a
	// configured ceiling.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrNoCandidates indicates no agent satisfies capabilities, SLA, and
	// cost constraints at routing time.
	ErrNoCandidates = errors.New("no capable agents available")

	// ErrDeadlineExceeded indicates the task deadline elapsed before or
	// during execution.
	ErrDeadlineExceeded = errors.New("task deadline exceeded")

	// ErrTransport indicates an adapter-level I/O failure (DNS, TCP,
	// protocol, non-200 response).
	ErrTransport = errors.New("transport error")

	// ErrTool indicates the remote tool returned a structured error.
	ErrTool = errors.New("tool error")

	// ErrHealthFailure indicates an agent health probe failed.
	ErrHealthFailure = errors.New("health check failed")

	// ErrRegistry indicates a skills or mesh-config document is missing
	// or malformed.
	ErrRegistry = errors.New("registry error")

	// ErrFatal indicates an invariant violation; the coordinator responds
	// with an emergency shutdown.
	ErrFatal = errors.New("fatal invariant violation")

	// ErrAgentNotFound indicates the referenced agent is not registered.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrShuttingDown indicates the coordinator rejected work because it
	// is stopping.
	ErrShuttingDown = errors.New("coordinator shutting down")
)

// ValidationError wraps a field-level validation failure with context.
type ValidationError struct {
	Entity string // entity being validated (agent, task)
	ID     string // identifier of the entity, if known
	Field  string // offending field (optional)
	Reason string // human-readable reason
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s %q: field %q: %s", e.Entity, e.ID, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Entity, e.ID, e.Reason)
}

// Unwrap makes ValidationError match ErrValidation via errors.Is.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a field-level validation error.
func NewValidationError(entity, id, field, reason string) *ValidationError {
	return &ValidationError{Entity: entity, ID: id, Field: field, Reason: reason}
}

// TransportError wraps an adapter I/O failure with endpoint context.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure against %s: %v", e.Endpoint, e.Err)
}

// Unwrap returns ErrTransport so errors.Is matches the kind; the wrapped
// cause remains reachable through the error chain.
func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// NewTransportError creates a transport error for the given endpoint.
func NewTransportError(endpoint string, err error) *TransportError {
	return &TransportError{Endpoint: endpoint, Err: err}
}

// ToolError wraps a structured error returned by a remote tool.
type ToolError struct {
	Server string
	Tool   string
	Detail string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s.%s failed: %s", e.Server, e.Tool, e.Detail)
}

// Unwrap makes ToolError match ErrTool via errors.Is.
func (e *ToolError) Unwrap() error { return ErrTool }

// NewToolError creates a tool error for the given server and tool.
func NewToolError(server, tool, detail string) *ToolError {
	return &ToolError{Server: server, Tool: tool, Detail: detail}
}
