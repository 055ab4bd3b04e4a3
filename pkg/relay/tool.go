package relay

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
)

// SearchToolName is the designated search capability. When the upstream
// model invokes this tool, the relay overrides its query argument with the
// session's last user utterance: the relay, not the model, supplies the true
// user query text.
const SearchToolName = "search"

// ToolDirection says where a tool's result goes.
type ToolDirection int

const (
	// ToServer re-injects the result into the upstream conversation as the
	// tool's return value so the model can continue reasoning.
	ToServer ToolDirection = iota + 1

	// ToClient marks a result for direct client visibility: side-channel
	// data the client needs without the model relaying it verbatim.
	ToClient
)

// String returns the direction name.
func (d ToolDirection) String() string {
	switch d {
	case ToServer:
		return "to_server"
	case ToClient:
		return "to_client"
	default:
		return "unknown"
	}
}

// ToolResult is a tool's output plus its destination.
type ToolResult struct {
	// Payload is arbitrary structured or textual content.
	Payload any

	// Direction selects upstream continuation or direct client delivery.
	Direction ToolDirection
}

// Text serializes the payload deterministically: nil becomes "", a string
// passes through unchanged, anything else is JSON-encoded.
func (r *ToolResult) Text() string {
	switch v := r.Payload.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// ToolHandler executes a tool call. Arguments are best-effort parsed from
// the model's serialized argument string; a malformed string yields an empty
// map, never an error. Handlers may perform network I/O; they run on the
// upstream-to-client loop, so at most one invocation is in flight per
// session.
type ToolHandler func(ctx context.Context, args map[string]any) (*ToolResult, error)

// ToolSchema describes a tool to the upstream model. It serializes to the
// function-tool shape of the realtime session configuration.
type ToolSchema struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// NewToolSchema derives a function-tool schema from the handler's argument
// struct type.
func NewToolSchema[Args any](name, description string) (*ToolSchema, error) {
	params, err := jsonschema.For[Args](&jsonschema.ForOptions{})
	if err != nil {
		return nil, err
	}
	return &ToolSchema{
		Type:        "function",
		Name:        name,
		Description: description,
		Parameters:  params,
	}, nil
}

// MustToolSchema is NewToolSchema that panics on error. Intended for
// registration at startup with statically known argument types.
func MustToolSchema[Args any](name, description string) *ToolSchema {
	s, err := NewToolSchema[Args](name, description)
	if err != nil {
		panic(err)
	}
	return s
}

// Tool is a named server-side capability: a schema advertised to the
// upstream model and a handler invoked on its behalf. A Tool captures its
// backend dependencies at construction time and is immutable once
// registered.
type Tool struct {
	Schema  *ToolSchema
	Handler ToolHandler
}

// Name returns the tool's registered name.
func (t *Tool) Name() string {
	return t.Schema.Name
}
