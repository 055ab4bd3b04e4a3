package relay

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrUnknownTool is returned when the upstream model invokes a tool
	// that was never registered. This indicates a session/tool-registration
	// mismatch and is fatal to the session: the tool schemas forwarded
	// upstream must always be a superset of the names the model can emit.
	ErrUnknownTool = errors.New("relay: unknown tool")
)

// Error is a structured connection error from the upstream dial.
type Error struct {
	// Code is a short machine-readable code (e.g. "connection_failed").
	Code string

	// Message is the human-readable error message.
	Message string

	// HTTPStatus is the HTTP status of the failed handshake, if any.
	HTTPStatus int
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("relay: %s (HTTP %d): %s", e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("relay: %s: %s", e.Code, e.Message)
}
