package mcp

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/mesherrors"
)

// Timeout and backoff constants for the tool port.
const (
	// InitTimeout is the per-server initialization deadline (transport +
	// handshake).
	InitTimeout = 30 * time.Second

	// ReinitTimeout is the deadline for recreating a session during recovery.
	ReinitTimeout = 10 * time.Second

	// OperationTimeout is the per-call ceiling for CallTool. Task deadlines
	// passed in the context take precedence when shorter.
	OperationTimeout = 90 * time.Second

	// RetryBackoffMin and RetryBackoffMax bound the jittered backoff
	// before the single retry attempt.
	RetryBackoffMin = 250 * time.Millisecond
	RetryBackoffMax = 750 * time.Millisecond
)

// shouldRecreateSession reports whether an error warrants tearing down the
// session and retrying once. Only connection-level transport failures
// qualify; context expiry, tool errors, and protocol errors do not.
func shouldRecreateSession(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, mesherrors.ErrTool) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		// Timeouts are not retried — the server may just be slow.
		return !netErr.Timeout()
	}

	return isConnectionError(err)
}

// isConnectionError detects connection-level transport failures.
func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, indicator := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"connection closed",
		"no such host",
		"websocket: close",
	} {
		if strings.Contains(msg, indicator) {
			return true
		}
	}
	return false
}
